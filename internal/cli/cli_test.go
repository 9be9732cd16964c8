package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	_ "github.com/JonMunkholm/ledgerimport/internal/core/kinds"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const contactsCSV = "Full Name,E-mail,Contact Type,Favourite Colour\n" +
	"Ada,ada@example.com,customer,red\n" +
	"Bob,bob@example.com,partner,blue\n" +
	"Cy,cy@example.com,vendor,green\n"

func TestKinds(t *testing.T) {
	out, _, err := execute(t, "kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "contacts")
	assert.Contains(t, out, "Contact Name")
	assert.Contains(t, out, "Invoice Number, Customer Name, Issue Date, Amount")

	out, _, err = execute(t, "kinds", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "contact_type")
	assert.Contains(t, out, "required")
}

func TestTemplateToStdout(t *testing.T) {
	out, _, err := execute(t, "template", "contacts", "--product", "acme", "--out", "-")
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Contains(t, out, "Contact Name,Email,")
	assert.Contains(t, out, "Sample Name")
}

func TestTemplateToDirectory(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "template", "Products", "--product", "Acme", "--out", dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "acme-products-template.csv")
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Product Name,SKU,")
}

func TestTemplateUnknownKind(t *testing.T) {
	_, _, err := execute(t, "template", "widgets", "--out", "-")
	assert.ErrorIs(t, err, core.ErrUnknownKind)
}

func TestInspect(t *testing.T) {
	path := writeFile(t, "contacts.csv", contactsCSV)

	out, _, err := execute(t, "inspect", path, "--kind", "contacts")
	require.NoError(t, err)

	assert.Contains(t, out, "3 rows, 4 columns")
	assert.Contains(t, out, "Contact Name (name)")
	assert.Contains(t, out, "Contact Type (contact_type)")
	assert.Contains(t, out, "(skip)")
	assert.Contains(t, out, "2 clean, 1 with warnings")
	assert.Contains(t, out, "row 2: Contact Type: invalid enum")
	assert.NotContains(t, out, "missing required fields")
}

func TestInspectOverridesAndMissingFields(t *testing.T) {
	path := writeFile(t, "contacts.csv", contactsCSV)

	out, _, err := execute(t, "inspect", path, "-k", "contacts",
		"--map", "Favourite Colour=notes",
		"--map", "Full Name=skip")
	require.NoError(t, err)
	assert.Contains(t, out, "Notes (notes)")
	assert.Contains(t, out, "missing required fields: Contact Name")
}

func TestInspectErrors(t *testing.T) {
	path := writeFile(t, "contacts.csv", contactsCSV)

	tests := []struct {
		name    string
		args    []string
		wantErr string
		is      error
	}{
		{name: "missing kind", args: []string{"inspect", path}, wantErr: "--kind is required"},
		{name: "unknown kind", args: []string{"inspect", path, "--kind", "widgets"}, is: core.ErrUnknownKind},
		{name: "unknown field", args: []string{"inspect", path, "--kind", "contacts", "--map", "E-mail=fax"}, is: core.ErrUnknownField},
		{name: "unknown column", args: []string{"inspect", path, "--kind", "contacts", "--map", "Fax=notes"}, wantErr: `no column named "Fax"`},
		{name: "malformed override", args: []string{"inspect", path, "--kind", "contacts", "--map", "notes"}, wantErr: "want Column=field"},
		{name: "missing file", args: []string{"inspect", filepath.Join(t.TempDir(), "nope.csv"), "--kind", "contacts"}, is: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

type ingestStub struct {
	paths  []string
	tenant string
	rows   int
}

func (s *ingestStub) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.paths = append(s.paths, r.URL.Path)
		s.tenant = r.Header.Get("X-Tenant-ID")

		var body struct {
			Rows []core.Record `json:"rows"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.rows += len(body.Rows)

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(core.BatchResponse{Success: len(body.Rows), Errors: []string{}})
	}
}

func TestRun(t *testing.T) {
	stub := &ingestStub{}
	srv := httptest.NewServer(stub.handler(http.StatusOK))
	defer srv.Close()

	path := writeFile(t, "contacts.csv", contactsCSV)

	out, errOut, err := execute(t, "run", path, "--kind", "contacts",
		"--endpoint", srv.URL, "--tenant", "acme", "--batch-size", "2")
	require.NoError(t, err)

	assert.Equal(t, []string{"/contacts/import", "/contacts/import"}, stub.paths)
	assert.Equal(t, "acme", stub.tenant)
	assert.Equal(t, 3, stub.rows)
	assert.Contains(t, out, "imported 3, failed 0")
	assert.Contains(t, errOut, "batch 1/2   67%  (2/3 rows)")
	assert.Contains(t, errOut, "batch 2/2  100%  (3/3 rows)")
}

func TestRunQuiet(t *testing.T) {
	stub := &ingestStub{}
	srv := httptest.NewServer(stub.handler(http.StatusOK))
	defer srv.Close()

	path := writeFile(t, "contacts.csv", contactsCSV)

	_, errOut, err := execute(t, "run", path, "-k", "contacts", "--endpoint", srv.URL, "-q")
	require.NoError(t, err)
	assert.Empty(t, errOut)
}

func TestRunFailedBatches(t *testing.T) {
	stub := &ingestStub{}
	srv := httptest.NewServer(stub.handler(http.StatusBadGateway))
	defer srv.Close()

	path := writeFile(t, "contacts.csv", contactsCSV)

	out, _, err := execute(t, "run", path, "--kind", "contacts", "--endpoint", srv.URL, "-q")
	require.Error(t, err)
	assert.Equal(t, "3 rows failed", err.Error())
	assert.Contains(t, out, "imported 0, failed 3")
	assert.Contains(t, out, "Batch 1: endpoint returned 502 Bad Gateway")
}

func TestRunRequiresMappedFields(t *testing.T) {
	stub := &ingestStub{}
	srv := httptest.NewServer(stub.handler(http.StatusOK))
	defer srv.Close()

	path := writeFile(t, "products.csv", "SKU\nA-1\n")

	_, _, err := execute(t, "run", path, "--kind", "products", "--endpoint", srv.URL)

	var missing *core.MissingRequiredFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"Product Name", "Price"}, missing.Labels)
	assert.Empty(t, stub.paths)
}

func TestRunRequiresEndpoint(t *testing.T) {
	t.Setenv("INGEST_BASE_URL", "")
	path := writeFile(t, "contacts.csv", contactsCSV)

	_, _, err := execute(t, "run", path, "--kind", "contacts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--endpoint is required")
}

func TestErrorText(t *testing.T) {
	missing := &core.MissingRequiredFieldsError{Labels: []string{"Product Name", "Price"}}
	text := errorText(missing)
	assert.Contains(t, text, "Required fields are not mapped: Product Name, Price (Code: MAP001).")
	assert.Contains(t, text, "Map a column to each required field")

	text = errorText(fmt.Errorf("%w: %q", core.ErrUnknownKind, "widgets"))
	assert.Contains(t, text, "(Code: MAP004)")
	assert.Contains(t, text, `"widgets"`)

	assert.Equal(t, "--endpoint is required (or set INGEST_BASE_URL)",
		errorText(errors.New("--endpoint is required (or set INGEST_BASE_URL)")))
}

func TestReportResultCancelled(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := reportResult(cmd, core.ImportResult{
		SuccessCount: 2,
		FailedCount:  0,
		Errors:       []string{"Import cancelled: 3 of 5 rows were not submitted"},
		Cancelled:    true,
	})
	assert.ErrorIs(t, err, core.ErrImportCancelled)
	assert.Contains(t, out.String(), "Import cancelled: 3 of 5 rows were not submitted")
	assert.Contains(t, errorText(err), "(Code: IMP001)")
}
