package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emrgen/plm/internal/cache"
	"github.com/emrgen/plm/internal/compress"
	"github.com/emrgen/plm/internal/queue"
	"github.com/emrgen/plm/internal/service"
	"github.com/emrgen/plm/internal/storage"
	"github.com/emrgen/plm/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := tester.NewStore(t)
	reg := tester.NewRegistry(t)
	files := service.NewFileStore(storage.NewMemory(), compress.NewLZ4())
	activity := service.NewActivityService(s, queue.NewNop())
	revisions := service.NewRevisionService(s, reg, files, activity, true)

	srv := httptest.NewServer(NewHandler(Services{
		Parts:     service.NewPartService(s, revisions, files, activity),
		Revisions: revisions,
		Bom:       service.NewBomService(s, cache.NewMemory(), activity),
		Accounts:  service.NewAccountService(s, tester.NewDirectory(t), reg),
		Activity:  activity,
	}))
	t.Cleanup(srv.Close)

	return srv
}

type call struct {
	method      string
	path        string
	body        any
	account     bool
	contentType string
	raw         io.Reader
}

func do(t *testing.T, srv *httptest.Server, c call) (int, []byte) {
	t.Helper()

	body := c.raw
	if c.body != nil {
		data, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(c.method, srv.URL+c.path, body)
	require.NoError(t, err)
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	} else if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.account {
		req.Header.Set(service.AccountHeader, tester.Account)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func createPart(t *testing.T, srv *httptest.Server, release bool) string {
	t.Helper()

	code, data := do(t, srv, call{
		method:  http.MethodPost,
		path:    "/codici/",
		account: true,
		body:    map[string]any{"codice": "03", "descrizione": "staffa", "quantita": 4, "ubicazione": "A1", "rilascia_subito": release},
	})
	require.Equal(t, http.StatusOK, code, string(data))

	return decode[map[string]any](t, data)["codice"].(string)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	code, data := do(t, srv, call{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", decode[healthResponse](t, data).Status)

	code, _ = do(t, srv, call{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, code)
}

func TestParts(t *testing.T) {
	srv := newTestServer(t)

	code, data := do(t, srv, call{method: http.MethodPost, path: "/codici/", body: map[string]any{"codice": "03"}})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, decode[errorResponse](t, data).Detail, "missing header")

	code, data = do(t, srv, call{method: http.MethodPost, path: "/codici/", account: true, body: map[string]any{"codice": "3"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, decode[errorResponse](t, data).Detail, "2 digits")

	code, _ = do(t, srv, call{method: http.MethodPost, path: "/codici/", account: true, raw: strings.NewReader("{"), contentType: "application/json"})
	assert.Equal(t, http.StatusBadRequest, code)

	released := createPart(t, srv, true)
	open := createPart(t, srv, false)
	assert.Equal(t, "03000001Y", released)

	code, data = do(t, srv, call{method: http.MethodGet, path: "/codici/"})
	require.Equal(t, http.StatusOK, code)
	list := decode[[]partResponse](t, data)
	require.Len(t, list, 1)
	assert.Equal(t, released, list[0].Code)
	require.NotNil(t, list[0].Latest)
	assert.True(t, list[0].Latest.IsReleased)

	code, data = do(t, srv, call{method: http.MethodGet, path: "/codici/?include_unreleased=true"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]partResponse](t, data), 2)

	code, _ = do(t, srv, call{method: http.MethodGet, path: "/codici/" + open})
	assert.Equal(t, http.StatusNotFound, code)

	code, data = do(t, srv, call{method: http.MethodGet, path: "/codici/" + open + "/dettaglio?include_unreleased=true"})
	require.Equal(t, http.StatusOK, code)
	detail := decode[partResponse](t, data)
	require.Len(t, detail.Revisions, 1)
	assert.Equal(t, "concept", detail.Revisions[0].State)
	assert.Equal(t, "#3498db", detail.Revisions[0].Color)
	assert.Len(t, detail.Revisions[0].Certification, 3)

	code, _ = do(t, srv, call{method: http.MethodGet, path: "/codici/?include_unreleased=maybe"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRevisionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	part := createPart(t, srv, false)

	code, data := do(t, srv, call{method: http.MethodPost, path: "/revisioni/", account: true, body: map[string]any{"codice": part}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, decode[errorResponse](t, data).Detail, "unreleased revision")

	code, data = do(t, srv, call{
		method:  http.MethodPost,
		path:    "/revisioni/" + part + "/0/certificazione",
		account: true,
		body:    map[string]any{"campi": []map[string]any{{"nome": "descrizione", "valore": "staffa"}, {"nome": "peso_netto", "valore": "2kg"}}},
	})
	require.Equal(t, http.StatusOK, code, string(data))
	entries := decode[[]service.CertificationEntry](t, data)
	require.Len(t, entries, 4)
	assert.Equal(t, "Peso Netto", entries[3].Label)

	code, data = do(t, srv, call{method: http.MethodPost, path: "/revisioni/" + part + "/0/stato", account: true, body: map[string]any{"stato": "prototipo"}})
	require.Equal(t, http.StatusOK, code, string(data))
	assert.Equal(t, "prototipo", decode[revisionResponse](t, data).State)

	code, _ = do(t, srv, call{method: http.MethodPost, path: "/revisioni/" + part + "/0/stato", account: true, body: map[string]any{"stato": "concept"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data = do(t, srv, call{method: http.MethodPost, path: "/revisioni/" + part + "/0/rilascio", account: true})
	require.Equal(t, http.StatusOK, code, string(data))
	rev := decode[revisionResponse](t, data)
	assert.True(t, rev.IsReleased)
	assert.NotNil(t, rev.ReleasedAt)

	code, _ = do(t, srv, call{method: http.MethodPost, path: "/revisioni/" + part + "/0/rilascio", account: true})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, call{method: http.MethodPost, path: "/revisioni/" + part + "/0/stato", account: true, body: map[string]any{"stato": "morto"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data = do(t, srv, call{method: http.MethodPost, path: "/revisioni/", account: true, body: map[string]any{"codice": part, "cad_file": "staffa.step"}})
	require.Equal(t, http.StatusOK, code, string(data))
	rev = decode[revisionResponse](t, data)
	assert.Equal(t, 1, rev.Index)
	assert.Equal(t, "concept", rev.State)
	require.NotNil(t, rev.CadFile)

	code, data = do(t, srv, call{method: http.MethodGet, path: "/revisioni/" + part + "/1/certificazione"})
	require.Equal(t, http.StatusOK, code)
	entries = decode[[]service.CertificationEntry](t, data)
	require.Len(t, entries, 4)
	assert.Equal(t, "staffa", entries[0].Value)

	code, data = do(t, srv, call{method: http.MethodGet, path: "/revisioni/" + part})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]revisionResponse](t, data), 2)

	code, _ = do(t, srv, call{method: http.MethodGet, path: "/revisioni/" + part + "/x/certificazione"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, srv, call{method: http.MethodGet, path: "/revisioni/" + part + "/7/certificazione"})
	assert.Equal(t, http.StatusNotFound, code)
}

func multipartBody(t *testing.T, field string, files map[string]string, values map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for name, value := range values {
		require.NoError(t, w.WriteField(name, value))
	}
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func TestRevisionFiles(t *testing.T) {
	srv := newTestServer(t)
	part := createPart(t, srv, false)
	path := "/revisioni/" + part + "/0/files"

	body, contentType := multipartBody(t, "files", map[string]string{"disegno.pdf": "pdf content"}, nil)
	code, data := do(t, srv, call{method: http.MethodPost, path: path, account: true, raw: body, contentType: contentType})
	require.Equal(t, http.StatusOK, code, string(data))
	files := decode[[]revisionFileResponse](t, data)
	require.Len(t, files, 1)
	assert.Equal(t, "disegno.pdf", files[0].Filename)
	assert.True(t, strings.HasSuffix(files[0].StoredName, "_disegno.pdf"))

	body, contentType = multipartBody(t, "other", map[string]string{"x.txt": "x"}, nil)
	code, _ = do(t, srv, call{method: http.MethodPost, path: path, account: true, raw: body, contentType: contentType})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data = do(t, srv, call{method: http.MethodGet, path: path + "/" + files[0].StoredName})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pdf content", string(data))

	code, _ = do(t, srv, call{method: http.MethodGet, path: path + "/missing.pdf"})
	assert.Equal(t, http.StatusNotFound, code)

	code, data = do(t, srv, call{method: http.MethodGet, path: path})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]revisionFileResponse](t, data), 1)
}

func TestPartFiles(t *testing.T) {
	srv := newTestServer(t)
	part := createPart(t, srv, true)

	body, contentType := multipartBody(t, "file", map[string]string{"scheda.txt": "dati"}, map[string]string{"codice": part, "descrizione": "scheda tecnica"})
	code, data := do(t, srv, call{method: http.MethodPost, path: "/files/upload", account: true, raw: body, contentType: contentType})
	require.Equal(t, http.StatusOK, code, string(data))
	assert.Equal(t, "scheda tecnica", decode[partFileResponse](t, data).Description)

	code, data = do(t, srv, call{method: http.MethodGet, path: "/files/" + part})
	require.Equal(t, http.StatusOK, code)
	files := decode[[]partFileResponse](t, data)
	require.Len(t, files, 1)
	assert.Equal(t, "scheda.txt", files[0].Filename)
}

func TestBom(t *testing.T) {
	srv := newTestServer(t)
	parent := createPart(t, srv, true)
	child := createPart(t, srv, true)

	merge := func(quantity string) (int, service.MergeResult) {
		code, data := do(t, srv, call{method: http.MethodPost, path: "/distinte/?padre=" + parent + "&figlio=" + child + quantity, account: true})
		if code != http.StatusOK {
			return code, service.MergeResult{}
		}
		return code, decode[service.MergeResult](t, data)
	}

	code, result := merge("&quantita=2")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.MergeCreated, result.Action)

	code, result = merge("")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3.0, result.Quantity)

	code, data := do(t, srv, call{method: http.MethodGet, path: "/distinte/" + parent})
	require.Equal(t, http.StatusOK, code)
	components := decode[[]map[string]any](t, data)
	require.Len(t, components, 1)
	assert.Equal(t, child, components[0]["figlio"])

	code, data = do(t, srv, call{method: http.MethodPost, path: "/distinte/?padre=" + child + "&figlio=" + parent, account: true})
	assert.Equal(t, http.StatusBadRequest, code, string(data))

	code, result = merge("&quantita=-3")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.MergeRemoved, result.Action)

	code, _ = merge("&quantita=abc")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRegistryEndpoints(t *testing.T) {
	srv := newTestServer(t)

	code, data := do(t, srv, call{method: http.MethodGet, path: "/stati/"})
	require.Equal(t, http.StatusOK, code)
	states := decode[[]map[string]string](t, data)
	require.Len(t, states, 5)
	assert.Equal(t, "concept", states[0]["name"])

	code, data = do(t, srv, call{method: http.MethodGet, path: "/form/campi"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]map[string]any](t, data), 3)
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t)

	code, data := do(t, srv, call{method: http.MethodGet, path: "/auth/policy"})
	require.Equal(t, http.StatusOK, code)
	policy := decode[map[string]any](t, data)
	assert.Equal(t, 8.0, policy["min_length"])
	assert.NotEmpty(t, policy["description"])

	code, _ = do(t, srv, call{method: http.MethodPost, path: "/auth/accounts", body: map[string]string{"account": "gneri", "password": "short"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data = do(t, srv, call{method: http.MethodPost, path: "/auth/accounts", body: map[string]string{"account": "gneri", "password": "Segreta1!"}})
	require.Equal(t, http.StatusCreated, code, string(data))
	assert.Equal(t, "da assegnare", decode[map[string]string](t, data)["stabilimento"])

	code, _ = do(t, srv, call{method: http.MethodPost, path: "/auth/accounts", body: map[string]string{"account": "GNERI", "password": "Segreta1!"}})
	assert.Equal(t, http.StatusBadRequest, code)

	login := map[string]string{"stabilimento": "da assegnare", "gruppo": "da assegnare", "account": "gneri", "password": "Segreta1!"}
	code, _ = do(t, srv, call{method: http.MethodPost, path: "/auth/login", body: login})
	assert.Equal(t, http.StatusOK, code)

	login["password"] = "Sbagliata1!"
	code, _ = do(t, srv, call{method: http.MethodPost, path: "/auth/login", body: login})
	assert.Equal(t, http.StatusUnauthorized, code)

	login["account"] = "nessuno"
	code, _ = do(t, srv, call{method: http.MethodPost, path: "/auth/login", body: login})
	assert.Equal(t, http.StatusNotFound, code)

	code, data = do(t, srv, call{method: http.MethodGet, path: "/auth/accounts"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]map[string]any](t, data), 3)
}

func TestActivities(t *testing.T) {
	srv := newTestServer(t)
	createPart(t, srv, false)
	createPart(t, srv, false)

	code, data := do(t, srv, call{method: http.MethodGet, path: "/attivita/?limit=1"})
	require.Equal(t, http.StatusOK, code)
	activities := decode[[]map[string]any](t, data)
	require.Len(t, activities, 1)
	assert.Equal(t, service.ActionPartCreated, activities[0]["azione"])
	assert.Equal(t, "mrossi", activities[0]["account"])

	code, _ = do(t, srv, call{method: http.MethodGet, path: "/attivita/?limit=x"})
	assert.Equal(t, http.StatusBadRequest, code)
}
