package server

import (
	"time"

	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/service"
)

type createPartRequest struct {
	Type        string  `json:"codice"`
	Description string  `json:"descrizione"`
	Quantity    float64 `json:"quantita"`
	Location    string  `json:"ubicazione"`
	State       string  `json:"stato"`
	ReleaseNow  bool    `json:"rilascia_subito"`
}

type createRevisionRequest struct {
	Code    string  `json:"codice"`
	Index   *int    `json:"indice"`
	State   string  `json:"stato"`
	CadFile *string `json:"cad_file"`
}

type changeStateRequest struct {
	State string `json:"stato"`
}

type certificationField struct {
	Name  string `json:"nome"`
	Value string `json:"valore"`
	Order *int   `json:"ordine"`
}

type certificationRequest struct {
	Fields []certificationField `json:"campi"`
}

type loginRequest struct {
	Facility string `json:"stabilimento"`
	Group    string `json:"gruppo"`
	Account  string `json:"account"`
	Password string `json:"password"`
}

type createAccountRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

type partResponse struct {
	Code        string              `json:"codice"`
	Description string              `json:"descrizione"`
	Quantity    float64             `json:"quantita"`
	Location    string              `json:"ubicazione"`
	CreatedAt   time.Time           `json:"created_at"`
	Revisions   []*revisionResponse `json:"revisioni,omitempty"`
	Files       []*partFileResponse `json:"files,omitempty"`
	Latest      *revisionSummary    `json:"ultima_revisione,omitempty"`
}

type revisionSummary struct {
	Index      int    `json:"indice"`
	State      string `json:"stato"`
	Color      string `json:"color"`
	IsReleased bool   `json:"is_released"`
}

type revisionResponse struct {
	Index         int                          `json:"indice"`
	State         string                       `json:"stato"`
	Color         string                       `json:"color"`
	CadFile       *string                      `json:"cad_file"`
	IsReleased    bool                         `json:"is_released"`
	ReleasedAt    *time.Time                   `json:"released_at"`
	Certification []service.CertificationEntry `json:"certificazione,omitempty"`
	Files         []*revisionFileResponse      `json:"files"`
}

type revisionFileResponse struct {
	Filename   string    `json:"filename"`
	StoredName string    `json:"stored_name"`
	Mimetype   string    `json:"mimetype"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type partFileResponse struct {
	Filename    string    `json:"filename"`
	StoredName  string    `json:"stored_name"`
	Description string    `json:"descrizione"`
	Filetype    string    `json:"filetype"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type policyResponse struct {
	registry.Policy
	Description string `json:"description"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newPartSummary(snap *registry.Snapshot, part *model.Part) *partResponse {
	resp := &partResponse{
		Code:        part.Code,
		Description: part.Description,
		Quantity:    part.Quantity,
		Location:    part.Location,
		CreatedAt:   part.CreatedAt,
	}
	if latest := part.LatestRevision(); latest != nil {
		resp.Latest = &revisionSummary{
			Index:      latest.Index,
			State:      latest.State,
			Color:      snap.StateColor(latest.State),
			IsReleased: latest.IsReleased,
		}
	}

	return resp
}

func newPartDetail(snap *registry.Snapshot, part *model.Part) *partResponse {
	resp := newPartSummary(snap, part)
	resp.Revisions = make([]*revisionResponse, 0, len(part.Revisions))
	for _, rev := range part.Revisions {
		out := newRevisionResponse(snap, rev)
		out.Certification = service.MergeCertification(snap.Fields, rev.Certification)
		resp.Revisions = append(resp.Revisions, out)
	}
	resp.Files = newPartFiles(part.Files)

	return resp
}

func newRevisionResponse(snap *registry.Snapshot, rev *model.Revision) *revisionResponse {
	return &revisionResponse{
		Index:      rev.Index,
		State:      rev.State,
		Color:      snap.StateColor(rev.State),
		CadFile:    rev.CadFile,
		IsReleased: rev.IsReleased,
		ReleasedAt: rev.ReleasedAt,
		Files:      newRevisionFiles(rev.Files),
	}
}

func newRevisionFiles(files []*model.RevisionFile) []*revisionFileResponse {
	out := make([]*revisionFileResponse, 0, len(files))
	for _, file := range files {
		out = append(out, &revisionFileResponse{
			Filename:   file.Filename,
			StoredName: file.StoredName,
			Mimetype:   file.Mimetype,
			Size:       file.Size,
			UploadedAt: file.UploadedAt,
		})
	}

	return out
}

func newPartFiles(files []*model.PartFile) []*partFileResponse {
	out := make([]*partFileResponse, 0, len(files))
	for _, file := range files {
		out = append(out, &partFileResponse{
			Filename:    file.Filename,
			StoredName:  file.StoredName,
			Description: file.Description,
			Filetype:    file.Filetype,
			UploadedAt:  file.UploadedAt,
		})
	}

	return out
}
