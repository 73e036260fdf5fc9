package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402-labs/paygate"
)

const payToAddress = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"

type sliceSource struct {
	docs []paygate.RequirementDoc
	err  error
}

func (s sliceSource) List(ctx context.Context) ([]paygate.RequirementDoc, error) {
	return s.docs, s.err
}

func weatherDoc() paygate.RequirementDoc {
	return paygate.RequirementDoc{
		Resource: "/weather",
		Upstream: "https://api.weather.example.com",
		Endpoints: []paygate.PaymentRequirement{{
			Resource:          "/weather",
			Path:              "/weather",
			Method:            "GET",
			Price:             "0.01",
			Network:           "base-sepolia",
			PayTo:             payToAddress,
			Asset:             "USDC",
			MaxTimeoutSeconds: 60,
		}},
	}
}

func TestLookup(t *testing.T) {
	reg := New(sliceSource{docs: []paygate.RequirementDoc{weatherDoc()}}, nil)
	require.NoError(t, reg.Load(context.Background()))

	req, err := reg.Lookup("/weather", "GET")
	require.NoError(t, err)
	assert.Equal(t, "0.01", req.Price)
	assert.Equal(t, "base-sepolia", req.Network)
}

func TestLookupNotFound(t *testing.T) {
	reg := New(sliceSource{docs: []paygate.RequirementDoc{weatherDoc()}}, nil)
	require.NoError(t, reg.Load(context.Background()))

	_, err := reg.Lookup("/unknown", "GET")
	assert.ErrorIs(t, err, paygate.ErrRequirementNotFound)

	// Same path, unregistered method.
	_, err = reg.Lookup("/weather", "DELETE")
	assert.ErrorIs(t, err, paygate.ErrRequirementNotFound)
}

func TestLookupMethodPrecedence(t *testing.T) {
	doc := weatherDoc()
	anyEndpoint := doc.Endpoints[0]
	anyEndpoint.Method = ""
	anyEndpoint.Price = "0.05"
	doc.Endpoints = append(doc.Endpoints, anyEndpoint)

	reg := New(sliceSource{docs: []paygate.RequirementDoc{doc}}, nil)
	require.NoError(t, reg.Load(context.Background()))

	// Exact method match wins over the method-agnostic entry.
	req, err := reg.Lookup("/weather", "GET")
	require.NoError(t, err)
	assert.Equal(t, "0.01", req.Price)

	// Other methods fall through to the method-agnostic entry.
	req, err = reg.Lookup("/weather", "POST")
	require.NoError(t, err)
	assert.Equal(t, "0.05", req.Price)
}

func TestLoadSkipsInvalidDocs(t *testing.T) {
	invalid := weatherDoc()
	invalid.Resource = "/broken"
	invalid.Endpoints[0].Resource = "/broken"
	invalid.Endpoints[0].Path = "/broken"
	invalid.Endpoints[0].Network = "dogechain"

	reg := New(sliceSource{docs: []paygate.RequirementDoc{weatherDoc(), invalid}}, nil)
	require.NoError(t, reg.Load(context.Background()))

	_, err := reg.Lookup("/weather", "GET")
	assert.NoError(t, err)
	_, err = reg.Lookup("/broken", "GET")
	assert.ErrorIs(t, err, paygate.ErrRequirementNotFound)
	assert.Len(t, reg.Docs(), 1)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	updated := weatherDoc()
	updated.Endpoints[0].Price = "0.02"

	reg := New(&reloadableSource{first: []paygate.RequirementDoc{weatherDoc()}, second: []paygate.RequirementDoc{updated}}, nil)
	require.NoError(t, reg.Load(context.Background()))
	req, err := reg.Lookup("/weather", "GET")
	require.NoError(t, err)
	assert.Equal(t, "0.01", req.Price)

	require.NoError(t, reg.Load(context.Background()))
	req, err = reg.Lookup("/weather", "GET")
	require.NoError(t, err)
	assert.Equal(t, "0.02", req.Price)
}

type reloadableSource struct {
	first, second []paygate.RequirementDoc
	loads         int
}

func (s *reloadableSource) List(ctx context.Context) ([]paygate.RequirementDoc, error) {
	s.loads++
	if s.loads == 1 {
		return s.first, nil
	}
	return s.second, nil
}

func TestFailedReloadKeepsSnapshot(t *testing.T) {
	source := &flakySource{docs: []paygate.RequirementDoc{weatherDoc()}}
	reg := New(source, nil)
	require.NoError(t, reg.Load(context.Background()))

	source.fail = true
	err := reg.Load(context.Background())
	require.Error(t, err)

	// The previous snapshot keeps serving.
	req, err := reg.Lookup("/weather", "GET")
	require.NoError(t, err)
	assert.Equal(t, "0.01", req.Price)
}

type flakySource struct {
	docs []paygate.RequirementDoc
	fail bool
}

func (s *flakySource) List(ctx context.Context) ([]paygate.RequirementDoc, error) {
	if s.fail {
		return nil, errors.New("source unavailable")
	}
	return s.docs, nil
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()

	writeFile := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	writeFile("weather.json", `{
		"resource": "/weather",
		"path": "/weather",
		"method": "GET",
		"price": "0.01",
		"network": "base-sepolia",
		"payTo": "`+payToAddress+`",
		"asset": "USDC",
		"maxTimeoutSeconds": 60
	}`)
	writeFile("notes.txt", "not a document")

	docs, err := DirSource{Dir: dir}.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/weather", docs[0].Resource)
	require.Len(t, docs[0].Endpoints, 1)
	assert.Equal(t, "0.01", docs[0].Endpoints[0].Price)
}

func TestDirSourceBadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0o644))

	_, err := DirSource{Dir: dir}.List(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"resource": "/weather",
			"price": "0.01",
			"network": "base-sepolia",
			"payTo": "` + payToAddress + `",
			"asset": "USDC",
			"maxTimeoutSeconds": 60
		}]`))
	}))
	defer server.Close()

	docs, err := NewHTTPSource(server.URL).List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/weather", docs[0].Resource)
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewHTTPSource(server.URL).List(context.Background())
	assert.Error(t, err)
}
