package util

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	pt_translations "github.com/go-playground/validator/v10/translations/pt_BR"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// ErrInvalidJSON indica corpo ausente ou malformado.
	ErrInvalidJSON = errors.New("JSON inválido")

	usernameTag   = "username"
	usernameText  = "{0} deve conter apenas letras minúsculas, números, ponto ou sublinhado"
	usernameRegex = regexp.MustCompile(`^[a-z0-9._]{3,30}$`)
)

func init() {
	Validate = validator.New()

	ptBR := pt_BR.New()
	uni := ut.New(ptBR, ptBR)
	Translator, _ = uni.GetTranslator("pt_BR")
	_ = pt_translations.RegisterDefaultTranslations(Validate, Translator)

	// erros usam o nome do campo JSON
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(usernameTag, func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	_ = Validate.RegisterTranslation(usernameTag, Translator,
		func(t ut.Translator) error { return t.Add(usernameTag, usernameText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(usernameTag, fe.Field())
			return s
		},
	)
}

// ValidationError carrega a mensagem traduzida de cada campo rejeitado.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "dados inválidos"
}

// ValidateStruct aplica as tags `validate` e traduz as falhas para pt-BR.
func ValidateStruct(v any) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(Translator)
	}
	return &ValidationError{Fields: fields}
}

// DecodeJSON lê o corpo (limitado a 1 MiB) e valida o destino.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return ErrInvalidJSON
	}
	return ValidateStruct(dst)
}
