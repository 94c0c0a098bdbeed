package web

import (
	"errors"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/natijti/internal/core"
)

// validate reports field errors under their query parameter names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("query"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// searchQuery is the query string of GET /api/results/search.
type searchQuery struct {
	NationalID      string `query:"nni" validate:"max=32"`
	FileNumber      string `query:"numero_dossier" validate:"max=32"`
	Name            string `query:"nom" validate:"max=100"`
	RegionID        int64  `query:"wilaya_id" validate:"gte=0"`
	EstablishmentID int64  `query:"etablissement_id" validate:"gte=0"`
	SeriesID        int64  `query:"serie_id" validate:"gte=0"`
	SeriesCode      string `query:"serie_code" validate:"max=16"`
	Decision        string `query:"decision" validate:"max=64"`
	Year            int    `query:"year" validate:"omitempty,gte=1960,lte=2100"`
	ExamType        string `query:"exam_type" validate:"omitempty,oneof=bac bepc concours"`
	Page            int    `query:"page" validate:"gte=0"`
	Size            int    `query:"size" validate:"gte=0"`
}

func (q searchQuery) params() core.SearchParams {
	return core.SearchParams{
		NationalID:      q.NationalID,
		FileNumber:      q.FileNumber,
		Name:            q.Name,
		RegionID:        q.RegionID,
		EstablishmentID: q.EstablishmentID,
		SeriesID:        q.SeriesID,
		SeriesCode:      q.SeriesCode,
		Decision:        q.Decision,
		Year:            q.Year,
		ExamType:        core.ExamType(q.ExamType),
		Page:            q.Page,
		Size:            q.Size,
	}
}

// sessionQuery is the query string of GET /api/sessions.
type sessionQuery struct {
	ExamType string `query:"exam_type" validate:"omitempty,oneof=bac bepc concours"`
	Year     int    `query:"year" validate:"omitempty,gte=1960,lte=2100"`
}

// bindQuery fills the string and integer fields of dst from values using
// their query tags, then validates dst. Errors unwrap to core.ErrInvalidParameter.
func bindQuery(values url.Values, dst any) error {
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()
	fields := make(map[string]string)

	for i := 0; i < rt.NumField(); i++ {
		name, _, _ := strings.Cut(rt.Field(i).Tag.Get("query"), ",")
		if name == "" || name == "-" {
			continue
		}
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			continue
		}
		fv := rv.Field(i)
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || fv.OverflowInt(n) {
				fields[name] = "must be an integer"
				continue
			}
			fv.SetInt(n)
		}
	}
	if len(fields) > 0 {
		return &paramError{fields: fields}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = describeTag(fe)
		}
		return &paramError{fields: fields}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
