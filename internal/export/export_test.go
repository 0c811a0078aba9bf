package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/pkg/api"
)

var testRows = []api.ProjectionRow{
	{
		PDBID:        "1A02",
		ChainID:      "A",
		UniprotAC:    "P00846",
		ProteinNames: "ATP synthase subunit a (F-ATPase protein 6)",
		GeneNames:    "MT-ATP6 ATP6",
		Organism:     "Homo sapiens (Human)",
		KeggID:       "hsa:4519",
		MitoID:       "MPO1",
		GeneID:       4519,
	},
	{
		PDBID:        "10GS",
		ChainID:      "A",
		UniprotAC:    "P09211",
		ProteinNames: "Glutathione S-transferase P, GST class-pi",
		GeneNames:    "GSTP1",
		Organism:     "Homo sapiens (Human)",
		KeggID:       "hsa:2950",
		MitoID:       "MPO2",
		GeneID:       2950,
	},
}

const expectedCSV = `pdbid,chain,uniprot,proteinnames,genenames,organism,kegg,mitoid,entrezgeneid
1A02,A,P00846,ATP synthase subunit a (F-ATPase protein 6),MT-ATP6 ATP6,Homo sapiens (Human),hsa:4519,MPO1,4519
10GS,A,P09211,"Glutathione S-transferase P, GST class-pi",GSTP1,Homo sapiens (Human),hsa:2950,MPO2,2950
`

func seqOf(rows []api.ProjectionRow, err error) func(yield func(api.ProjectionRow, error) bool) {
	return func(yield func(api.ProjectionRow, error) bool) {
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
		if err != nil {
			yield(api.ProjectionRow{}, err)
		}
	}
}

func newTestExporter() *Exporter {
	return New(nil, slog.New(slog.DiscardHandler))
}

func TestExportStdout(t *testing.T) {
	t.Run("header and rows", func(t *testing.T) {
		var out bytes.Buffer
		if err := newTestExporter().Export(context.Background(), "", &out, seqOf(testRows, nil)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if out.String() != expectedCSV {
			t.Fatalf("Expected\n%s\ngot\n%s", expectedCSV, out.String())
		}
	})

	t.Run("empty result still has a header", func(t *testing.T) {
		var out bytes.Buffer
		if err := newTestExporter().Export(context.Background(), "", &out, seqOf(nil, nil)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if out.String() != strings.Join(Header, ",")+"\n" {
			t.Fatalf("Unexpected output %q", out.String())
		}
	})

	t.Run("row error is returned", func(t *testing.T) {
		failure := serviceerrors.NewStoreError("select view", errors.New("no such table"))
		var out bytes.Buffer
		err := newTestExporter().Export(context.Background(), "", &out, seqOf(testRows[:1], failure))
		if !serviceerrors.IsStoreError(err) {
			t.Fatalf("Expected a store error, got %v", err)
		}
	})
}

func TestExportFile(t *testing.T) {
	t.Run("new file is written", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proteins.csv")
		if err := newTestExporter().Export(context.Background(), path, io.Discard, seqOf(testRows, nil)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read export: %v", err)
		}
		if string(data) != expectedCSV {
			t.Fatalf("Unexpected file content %q", string(data))
		}
	})

	t.Run("existing file is not overwritten", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proteins.csv")
		if err := os.WriteFile(path, []byte("keep me\n"), 0o644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		read := false
		rows := func(yield func(api.ProjectionRow, error) bool) {
			read = true
		}

		err := newTestExporter().Export(context.Background(), path, io.Discard, rows)
		if !serviceerrors.IsOutputConflictError(err) {
			t.Fatalf("Expected an output conflict, got %v", err)
		}
		if err.Error() != path+" exists!" {
			t.Fatalf("Unexpected message %q", err.Error())
		}
		if read {
			t.Fatalf("Expected the rows not to be read")
		}
		data, _ := os.ReadFile(path)
		if string(data) != "keep me\n" {
			t.Fatalf("Existing file was modified: %q", string(data))
		}
	})

	t.Run("failed read leaves no file behind", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proteins.csv")
		failure := serviceerrors.NewStoreError("select view", errors.New("no such table: main.pdb_info"))

		err := newTestExporter().Export(context.Background(), path, io.Discard, seqOf(testRows[:1], failure))
		if !serviceerrors.IsStoreError(err) {
			t.Fatalf("Expected a store error, got %v", err)
		}
		if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
			t.Fatalf("Expected %s to be removed, got %v", path, statErr)
		}

		// a retry is not refused by a leftover file
		if err := newTestExporter().Export(context.Background(), path, io.Discard, seqOf(testRows, nil)); err != nil {
			t.Fatalf("Unexpected error on retry: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read export: %v", err)
		}
		if string(data) != expectedCSV {
			t.Fatalf("Unexpected file content %q", string(data))
		}
	})

	t.Run("missing directory is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "proteins.csv")
		err := newTestExporter().Export(context.Background(), path, io.Discard, seqOf(testRows, nil))
		if err == nil || serviceerrors.IsOutputConflictError(err) {
			t.Fatalf("Expected a create error, got %v", err)
		}
	})
}

type fakeS3 struct {
	objects map[string][]byte
	heads   int
	puts    int
	putErr  error
}

func (f *fakeS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.heads++
	if _, ok := f.objects[*params.Bucket+"/"+*params.Key]; ok {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &types.NotFound{}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	if f.putErr != nil {
		return nil, f.putErr
	}
	if aws.ToString(params.IfNoneMatch) != "*" {
		return nil, errors.New("expected a conditional put")
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Bucket+"/"+*params.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func TestExportS3(t *testing.T) {
	t.Run("new object is written", func(t *testing.T) {
		fake := &fakeS3{objects: map[string][]byte{}}
		err := newTestExporter().WithS3Client(fake).Export(context.Background(), "s3://exports/mito/proteins.csv", io.Discard, seqOf(testRows, nil))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if string(fake.objects["exports/mito/proteins.csv"]) != expectedCSV {
			t.Fatalf("Unexpected object %q", fake.objects["exports/mito/proteins.csv"])
		}
	})

	t.Run("existing object is a conflict", func(t *testing.T) {
		fake := &fakeS3{objects: map[string][]byte{"exports/proteins.csv": []byte("keep me")}}
		err := newTestExporter().WithS3Client(fake).Export(context.Background(), "s3://exports/proteins.csv", io.Discard, seqOf(testRows, nil))
		if !serviceerrors.IsOutputConflictError(err) {
			t.Fatalf("Expected an output conflict, got %v", err)
		}
		if fake.puts != 0 || string(fake.objects["exports/proteins.csv"]) != "keep me" {
			t.Fatalf("Existing object was modified")
		}
	})

	t.Run("failed precondition is a conflict", func(t *testing.T) {
		fake := &fakeS3{
			objects: map[string][]byte{},
			putErr:  &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"},
		}
		err := newTestExporter().WithS3Client(fake).Export(context.Background(), "s3://exports/proteins.csv", io.Discard, seqOf(testRows, nil))
		if !serviceerrors.IsOutputConflictError(err) {
			t.Fatalf("Expected an output conflict, got %v", err)
		}
	})

	t.Run("invalid destinations", func(t *testing.T) {
		for _, dest := range []string{"s3://", "s3://bucket", "s3://bucket/", "s3://bucket/dir/"} {
			fake := &fakeS3{objects: map[string][]byte{}}
			err := newTestExporter().WithS3Client(fake).Export(context.Background(), dest, io.Discard, seqOf(testRows, nil))
			if err == nil || fake.heads != 0 {
				t.Fatalf("Expected %q to be rejected, got %v", dest, err)
			}
		}
	})
}

// s3RoundTripper is an in-memory S3 endpoint for the real client.
type s3RoundTripper struct {
	objects map[string][]byte
}

func (m *s3RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	key := strings.TrimPrefix(req.URL.Path, "/")
	switch req.Method {
	case http.MethodHead:
		if _, ok := m.objects[key]; ok {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"Content-Length": {"0"}}}, nil
		}
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		m.objects[key] = body
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func TestExportS3Client(t *testing.T) {
	rt := &s3RoundTripper{objects: map[string][]byte{"exports/existing.csv": []byte("keep me")}}
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIA", "SECRET", ""),
		HTTPClient:   &http.Client{Transport: rt},
		UsePathStyle: true,
		BaseEndpoint: aws.String("https://mock.s3.local"),
	})
	exporter := newTestExporter().WithS3Client(client)

	t.Run("missing object is created", func(t *testing.T) {
		err := exporter.Export(context.Background(), "s3://exports/proteins.csv", io.Discard, seqOf(testRows, nil))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !strings.Contains(string(rt.objects["exports/proteins.csv"]), "pdbid,chain,uniprot") {
			t.Fatalf("Expected the CSV to be uploaded, got %q", rt.objects["exports/proteins.csv"])
		}
	})

	t.Run("existing object is a conflict", func(t *testing.T) {
		err := exporter.Export(context.Background(), "s3://exports/existing.csv", io.Discard, seqOf(testRows, nil))
		if !serviceerrors.IsOutputConflictError(err) {
			t.Fatalf("Expected an output conflict, got %v", err)
		}
		if string(rt.objects["exports/existing.csv"]) != "keep me" {
			t.Fatalf("Existing object was modified")
		}
	})
}
