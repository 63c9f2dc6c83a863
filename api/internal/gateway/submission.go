package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"paperai/api/internal/paper"
	"paperai/api/internal/util"
)

// Submission is the inbound request as the caller sends it.
type Submission struct {
	LLMName string            `json:"llm_name,omitempty"`
	Files   []InboundFile     `json:"files" validate:"required,min=1,dive"`
	Config  paper.PaperConfig `json:"config"`
}

type InboundFile struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name" validate:"required"`
	MimeType      string `json:"mimeType"`
	Base64Payload string `json:"base64Payload" validate:"required"`
}

var structs = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func supportedMIME(m string) bool {
	return util.IsImageMIME(m) || m == "application/pdf" || strings.HasPrefix(m, "text/")
}

// decode validates the submission and turns it into a GenerationRequest.
func decode(sub Submission, maxFiles int) (paper.GenerationRequest, *paper.Failure) {
	sub.Config.Difficulty = paper.Difficulty(strings.ToUpper(strings.TrimSpace(string(sub.Config.Difficulty))))

	if err := structs.Struct(sub); err != nil {
		return paper.GenerationRequest{}, paper.Fail(paper.InvalidRequest, "%s", describe(err))
	}
	if maxFiles > 0 && len(sub.Files) > maxFiles {
		return paper.GenerationRequest{}, paper.Fail(paper.InvalidRequest, "too many files: %d (max %d)", len(sub.Files), maxFiles)
	}
	if sub.Config.Counts.Total() < 1 {
		return paper.GenerationRequest{}, paper.Fail(paper.InvalidRequest, "config.counts must request at least one question")
	}

	files := make([]paper.SourceFile, 0, len(sub.Files))
	seen := make(map[string]struct{}, len(sub.Files))
	for i, f := range sub.Files {
		data, hint, err := util.DecodeBase64MaybeDataURL(f.Base64Payload)
		if err != nil {
			if errors.Is(err, util.ErrEmptyPayload) {
				return paper.GenerationRequest{}, paper.Fail(paper.InvalidRequest, "files[%d] (%s): empty payload", i, f.Name)
			}
			return paper.GenerationRequest{}, paper.Fail(paper.InvalidRequest, "files[%d] (%s): bad base64: %v", i, f.Name, err)
		}
		mime := util.PickMIME(f.MimeType, hint, data)
		if !supportedMIME(mime) {
			return paper.GenerationRequest{}, paper.Fail(paper.InvalidRequest, "files[%d] (%s): unsupported mime type %q", i, f.Name, mime)
		}
		id := strings.TrimSpace(f.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = uuid.NewString()
		}
		seen[id] = struct{}{}
		files = append(files, paper.SourceFile{ID: id, Name: f.Name, MimeType: mime, Payload: data})
	}
	return paper.GenerationRequest{Files: files, Config: sub.Config}, nil
}

func describe(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err.Error()
	}
	fe := ves[0]
	field := strings.TrimPrefix(fe.Namespace(), "Submission.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed on %s", field, fe.Tag())
}
