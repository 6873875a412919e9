package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/overtimestaff/overtimestaff/internal/errHandler"
	"github.com/overtimestaff/overtimestaff/internal/file"
	"github.com/overtimestaff/overtimestaff/internal/response"
)

// maxDocumentSize caps verification document uploads at 10MB.
const maxDocumentSize = 10 << 20

type DocumentHandler struct {
	FileUploader *file.FileUploader
	ErrHandler   *errHandler.ErrorHandler
}

func NewDocumentHandler(handler *DocumentHandler) *DocumentHandler {
	return &DocumentHandler{
		FileUploader: handler.FileUploader,
		ErrHandler:   handler.ErrHandler,
	}
}

// HandleUploadDocument receives a document file and stores it with the
// upload provider. The caller gets back the hosted URL to include in a
// verification submission.
func (h *DocumentHandler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)

	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		h.ErrHandler.BadRequest(w, r, errors.New("could not parse upload, is the file under 10MB?"))
		return
	}

	upload, header, err := r.FormFile("document")
	if err != nil {
		h.ErrHandler.BadRequest(w, r, errors.New("a file named 'document' is required"))
		return
	}
	defer upload.Close()

	// The upload provider's SDK works from a file path, so the body is
	// staged in a temp file first.
	tempPath := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(header.Filename))
	tempFile, err := os.Create(tempPath)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	defer os.Remove(tempPath)

	_, err = io.Copy(tempFile, upload)
	tempFile.Close()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	url, err := h.FileUploader.UploadFile(tempPath)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"Name": header.Filename,
		"URL":  url,
	}

	err = response.JSONCreatedResponse(w, data, "Document uploaded successfully")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
