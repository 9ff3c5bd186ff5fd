package exporter

import (
	"context"
	"fmt"
	"os"
	"time"

	collectorpb "go.opentelemetry.io/proto/otlp/collector/profiles/v1development"
	v1 "go.opentelemetry.io/proto/otlp/common/v1"
	profilespb "go.opentelemetry.io/proto/otlp/profiles/v1development"
	resourceV1 "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/VladMinzatu/simtrace/internal/trace"
)

const (
	scopeName    = "simtrace"
	scopeVersion = "v1"
	pushTimeout  = 10 * time.Second
)

type NowFunc func() uint64 // produces unix nsec

// BuildOltpProfile converts per-function instruction counts to an OTLP
// profile with one single-frame sample per function.
func BuildOltpProfile(funcs []trace.FunctionStats, executable string, now NowFunc) *profilespb.ProfilesData {
	nowNsec := now()
	stringTable := []string{""}
	mappingTable := []*profilespb.Mapping{{}}
	locationTable := []*profilespb.Location{{}}
	functionTable := []*profilespb.Function{{}}
	stackTable := []*profilespb.Stack{{}}

	sampleType := &profilespb.ValueType{
		TypeStrindex: strIndex(&stringTable, "instructions"),
		UnitStrindex: strIndex(&stringTable, "count"),
	}

	fnIndex := map[string]int32{}
	profileSamples := make([]*profilespb.Sample, 0, len(funcs))
	for _, f := range funcs {
		idx, ok := fnIndex[f.Name]
		if !ok {
			nameIdx := strIndex(&stringTable, f.Name)
			functionTable = append(functionTable, &profilespb.Function{
				NameStrindex:       nameIdx,
				SystemNameStrindex: nameIdx,
			})
			idx = int32(len(functionTable) - 1)
			fnIndex[f.Name] = idx
		}

		locationTable = append(locationTable, &profilespb.Location{
			Address:      f.Addr,
			MappingIndex: 0,
			Lines:        []*profilespb.Line{{FunctionIndex: idx, Line: 0}},
		})
		stackTable = append(stackTable, &profilespb.Stack{
			LocationIndices: []int32{int32(len(locationTable) - 1)},
		})

		profileSamples = append(profileSamples, &profilespb.Sample{
			StackIndex:       int32(len(stackTable) - 1),
			Values:           []int64{int64(f.Instructions)},
			AttributeIndices: []int32{},
			LinkIndex:        0,
		})
	}

	resource := &resourceV1.Resource{}
	if executable != "" {
		resource.Attributes = []*v1.KeyValue{{
			Key:   "process.executable.path",
			Value: &v1.AnyValue{Value: &v1.AnyValue_StringValue{StringValue: executable}},
		}}
	}

	profile := &profilespb.Profile{
		TimeUnixNano: nowNsec,
		DurationNano: uint64(0),
		SampleType:   sampleType,
		Samples:      profileSamples,
	}

	return &profilespb.ProfilesData{
		ResourceProfiles: []*profilespb.ResourceProfiles{{
			Resource: resource,
			ScopeProfiles: []*profilespb.ScopeProfiles{{
				Scope:    &v1.InstrumentationScope{Name: scopeName, Version: scopeVersion},
				Profiles: []*profilespb.Profile{profile},
			}},
		}},
		Dictionary: &profilespb.ProfilesDictionary{
			MappingTable:  mappingTable,
			LocationTable: locationTable,
			FunctionTable: functionTable,
			StackTable:    stackTable,
			StringTable:   stringTable,
		},
	}
}

// ExportRequest wraps the profile data in the body the OTLP profiles service
// accepts.
func ExportRequest(data *profilespb.ProfilesData) *collectorpb.ExportProfilesServiceRequest {
	return &collectorpb.ExportProfilesServiceRequest{
		ResourceProfiles: data.ResourceProfiles,
		Dictionary:       data.Dictionary,
	}
}

// WriteOltpProfile writes the protobuf-encoded export request to filename.
func WriteOltpProfile(data *profilespb.ProfilesData, filename string) error {
	b, err := proto.Marshal(ExportRequest(data))
	if err != nil {
		return fmt.Errorf("marshal OTLP profile: %w", err)
	}
	return os.WriteFile(filename, b, 0o644)
}

// PushOltpProfile sends the profile to an OTLP gRPC endpoint.
func PushOltpProfile(ctx context.Context, endpoint string, data *profilespb.ProfilesData) error {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()
	return pushWith(ctx, collectorpb.NewProfilesServiceClient(conn), endpoint, data)
}

func pushWith(ctx context.Context, client collectorpb.ProfilesServiceClient, endpoint string, data *profilespb.ProfilesData) error {
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	resp, err := client.Export(ctx, ExportRequest(data))
	if err != nil {
		return fmt.Errorf("export profile to %s: %w", endpoint, err)
	}
	if ps := resp.GetPartialSuccess(); ps != nil && ps.GetRejectedProfiles() > 0 {
		return fmt.Errorf("export profile to %s: %d profiles rejected: %s", endpoint, ps.GetRejectedProfiles(), ps.GetErrorMessage())
	}
	return nil
}

func strIndex(table *[]string, s string) int32 {
	for i, v := range *table {
		if v == s {
			return int32(i)
		}
	}
	*table = append(*table, s)
	return int32(len(*table) - 1)
}
