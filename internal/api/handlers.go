package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/validation"
	"merchant-onboarding/internal/models"
	checkapplicationstatus "merchant-onboarding/internal/workers/application/check-application-status"
	generatecontract "merchant-onboarding/internal/workers/contract/generate-contract"
	processdocument "merchant-onboarding/internal/workers/document/process-document"
)

const maxJSONBody = 4 << 20

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) testConnection(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, models.ConnectionTestResponse{
		Message: "Merchant onboarding API is running",
		Status:  "ready",
	})
}

func (s *Server) uploadAndProcess(w http.ResponseWriter, r *http.Request) {
	// one extra MiB for the form fields and multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.respondError(w, http.StatusBadRequest,
				fmt.Sprintf("File too large. Max: %d", s.maxUploadBytes), errors.ErrCodeInvalidDocument)
			return
		}
		s.respondError(w, http.StatusBadRequest, "request must be multipart/form-data", errors.ErrCodeInvalidDocument)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required", errors.ErrCodeInvalidDocument)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondFailure(w, "upload_and_process", errors.NewDocumentProcessingFailedError(r.FormValue("document_type"), err))
		return
	}

	out, err := s.documents.Execute(r.Context(), &processdocument.Input{
		DocumentType: r.FormValue("document_type"),
		Filename:     header.Filename,
		Content:      content,
	})
	if err != nil {
		s.respondFailure(w, "upload_and_process", err)
		return
	}
	s.respondJSON(w, http.StatusOK, out.Response())
}

func (s *Server) submitApplication(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitApplicationRequest
	if !s.decodeBody(w, r, submitApplicationSchema, &req) {
		return
	}

	resp, err := s.submissions.Submit(r.Context(), req)
	if err != nil {
		s.respondFailure(w, "submit_application", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) applicationStatus(w http.ResponseWriter, r *http.Request) {
	out, err := s.status.Execute(r.Context(), &checkapplicationstatus.Input{
		ApplicationID: mux.Vars(r)["id"],
	})
	if err != nil {
		s.respondFailure(w, "application_status", err)
		return
	}
	s.respondJSON(w, http.StatusOK, out.Response())
}

// generateContract uses the id from the path; an id in the body is ignored.
func (s *Server) generateContract(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateContractRequest
	if !s.decodeBody(w, r, generateContractSchema, &req) {
		return
	}

	out, err := s.contracts.Execute(r.Context(), &generatecontract.Input{
		ApplicationID:      mux.Vars(r)["id"],
		PersonalData:       req.PersonalData,
		BusinessData:       req.BusinessData,
		MerchantTerms:      req.MerchantTerms,
		ProcessedDocuments: req.ProcessedDocuments,
		Signature:          req.Signature,
		Agreements:         req.Agreements,
	})
	if err != nil {
		s.respondFailure(w, "generate_contract", err)
		return
	}
	s.respondJSON(w, http.StatusOK, out.Response())
}

func (s *Server) downloadContract(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	rc, size, err := s.contracts.Open(r.Context(), filename)
	if err != nil {
		s.respondFailure(w, "download_contract", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("Contract stream interrupted", map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
	}
}

// decodeBody validates the raw body against schema, decodes it into dst and
// runs the struct validator. It writes the 400 itself and reports whether the
// handler should continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema *validation.Schema, dst interface{}) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "request body too large", errors.ErrCodeApplicationValidation)
		return false
	}

	result, err := schema.ValidateBytes(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body", errors.ErrCodeApplicationValidation)
		return false
	}
	if !result.Valid {
		s.respondError(w, http.StatusBadRequest, result.Summary(), errors.ErrCodeApplicationValidation)
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body", errors.ErrCodeApplicationValidation)
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, describeValidation(err), errors.ErrCodeApplicationValidation)
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	e := verrs[0]
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "min":
		if e.Kind() == reflect.Map || e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s failed validation '%s'", e.Field(), e.Tag())
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
