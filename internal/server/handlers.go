package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/service"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Services bundles the core services the HTTP surface dispatches to.
type Services struct {
	Parts     *service.PartService
	Revisions *service.RevisionService
	Bom       *service.BomService
	Accounts  *service.AccountService
	Activity  *service.ActivityService
}

type handlers struct {
	parts     *service.PartService
	revisions *service.RevisionService
	bom       *service.BomService
	accounts  *service.AccountService
	activity  *service.ActivityService
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Message: "PLM Server attivo"})
}

func (h *handlers) createPart(w http.ResponseWriter, r *http.Request) {
	var req createPartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	part, err := h.parts.CreatePart(r.Context(), accountFrom(r.Context()), service.CreatePartInput{
		Type:        req.Type,
		Description: req.Description,
		Quantity:    req.Quantity,
		Location:    req.Location,
		State:       req.State,
		ReleaseNow:  req.ReleaseNow,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newPartDetail(h.revisions.Registry().Snapshot(), part))
}

func (h *handlers) listParts(w http.ResponseWriter, r *http.Request) {
	includeUnreleased, err := queryBool(r, "include_unreleased")
	if err != nil {
		writeError(w, r, err)
		return
	}

	parts, err := h.parts.ListParts(r.Context(), includeUnreleased)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap := h.revisions.Registry().Snapshot()
	resp := make([]*partResponse, 0, len(parts))
	for _, part := range parts {
		resp = append(resp, newPartSummary(snap, part))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getPart(w http.ResponseWriter, r *http.Request) {
	includeUnreleased, err := queryBool(r, "include_unreleased")
	if err != nil {
		writeError(w, r, err)
		return
	}

	part, err := h.parts.GetPart(r.Context(), r.PathValue("code"), includeUnreleased)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newPartDetail(h.revisions.Registry().Snapshot(), part))
}

func (h *handlers) mergeComponent(w http.ResponseWriter, r *http.Request) {
	quantity, err := queryFloat(r, "quantita", 1.0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	result, err := h.bom.MergeComponent(r.Context(), accountFrom(r.Context()), query.Get("padre"), query.Get("figlio"), quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) listComponents(w http.ResponseWriter, r *http.Request) {
	components, err := h.bom.GetComponents(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, components)
}

func (h *handlers) createRevision(w http.ResponseWriter, r *http.Request) {
	var req createRevisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rev, err := h.revisions.CreateRevision(r.Context(), accountFrom(r.Context()), service.CreateRevisionInput{
		Code:    req.Code,
		Index:   req.Index,
		State:   req.State,
		CadFile: req.CadFile,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRevisionResponse(h.revisions.Registry().Snapshot(), rev))
}

func (h *handlers) listRevisions(w http.ResponseWriter, r *http.Request) {
	revs, err := h.revisions.ListRevisions(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap := h.revisions.Registry().Snapshot()
	resp := make([]*revisionResponse, 0, len(revs))
	for _, rev := range revs {
		resp = append(resp, newRevisionResponse(snap, rev))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) releaseRevision(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rev, err := h.revisions.ReleaseRevision(r.Context(), accountFrom(r.Context()), r.PathValue("code"), index)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRevisionResponse(h.revisions.Registry().Snapshot(), rev))
}

func (h *handlers) changeState(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req changeStateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rev, err := h.revisions.ChangeState(r.Context(), accountFrom(r.Context()), r.PathValue("code"), index, req.State)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRevisionResponse(h.revisions.Registry().Snapshot(), rev))
}

func (h *handlers) getCertification(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.revisions.Certification(r.Context(), r.PathValue("code"), index)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) saveCertification(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req certificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	fields := make([]service.CertificationInput, 0, len(req.Fields))
	for _, field := range req.Fields {
		fields = append(fields, service.CertificationInput{Name: field.Name, Value: field.Value, Order: field.Order})
	}

	entries, err := h.revisions.SaveCertification(r.Context(), accountFrom(r.Context()), r.PathValue("code"), index, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) listRevisionFiles(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	files, err := h.revisions.ListFiles(r.Context(), r.PathValue("code"), index)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRevisionFiles(files))
}

func (h *handlers) uploadRevisionFiles(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	form, err := parseMultipart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.RemoveAll()

	uploads, closeAll, err := openUploads(form.File["files"])
	defer closeAll()
	if err != nil {
		writeError(w, r, err)
		return
	}

	files, err := h.revisions.UploadFiles(r.Context(), accountFrom(r.Context()), r.PathValue("code"), index, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRevisionFiles(files))
}

func (h *handlers) downloadRevisionFile(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	file, data, err := h.revisions.OpenFile(r.Context(), r.PathValue("code"), index, r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	contentType := file.Mimetype
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logrus.Warnf("write file %s: %v", file.StoredName, err)
	}
}

func (h *handlers) uploadPartFile(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.RemoveAll()

	uploads, closeAll, err := openUploads(form.File["file"])
	defer closeAll()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(uploads) == 0 {
		writeError(w, r, service.ErrNoFiles)
		return
	}

	file, err := h.parts.UploadPartFile(r.Context(), accountFrom(r.Context()), formValue(form, "codice"), formValue(form, "descrizione"), uploads[0])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newPartFiles([]*model.PartFile{file})[0])
}

func (h *handlers) listPartFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.parts.ListPartFiles(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newPartFiles(files))
}

func (h *handlers) listStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.revisions.Registry().Snapshot().States)
}

func (h *handlers) listFormFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.revisions.Registry().Snapshot().Fields)
}

func (h *handlers) accountHierarchy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.accounts.Hierarchy())
}

func (h *handlers) passwordPolicy(w http.ResponseWriter, r *http.Request) {
	policy := h.accounts.Policy()
	writeJSON(w, http.StatusOK, policyResponse{Policy: policy, Description: policy.Description()})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.accounts.VerifyLogin(r.Context(), req.Facility, req.Group, req.Account, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

func (h *handlers) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.accounts.CreateAccount(r.Context(), req.Account, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, acc)
}

func (h *handlers) listActivities(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	activities, err := h.activity.ListActivities(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}

func parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid multipart body: %v", err)
	}

	return r.MultipartForm, nil
}

// openUploads opens every file header. The returned func closes whatever was
// opened and is safe to call on error.
func openUploads(headers []*multipart.FileHeader) ([]service.Upload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, closeAll, status.Errorf(codes.InvalidArgument, "open upload %q: %v", header.Filename, err)
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{
			Filename: header.Filename,
			Mimetype: header.Header.Get("Content-Type"),
			Content:  f,
		})
	}

	return uploads, closeAll, nil
}

func formValue(form *multipart.Form, name string) string {
	if values := form.Value[name]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}

	return ""
}
