package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/json"
	"github.com/hilthontt/parley/internal/infrastructure/validate"
)

type Translator interface {
	Translate(ctx context.Context, text, from, to string) string
}

type Handler struct {
	translator Translator
}

func NewHandler(translator Translator) *Handler {
	return &Handler{translator: translator}
}

var validateText = validate.Field("text",
	validate.Required(),
	validate.MaxLength(4000),
)

// TranslateHandler godoc
// @Summary      Translate text
// @Description  Runs the translation gateway directly. Always answers 200; when every provider fails the result is the "[from→to] text" placeholder.
// @Tags         translate
// @Accept       json
// @Produce      json
// @Param        request body translateRequest true "Text and language pair"
// @Success      200 {object} translateResponse
// @Failure      400 {object} map[string]interface{} "Validation error"
// @Router       /translate [post]
func (h *Handler) TranslateHandler(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := validateText(strings.TrimSpace(req.Text)); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	from, err := language("from", req.From)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}
	to, err := language("to", req.To)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	json.Write(w, http.StatusOK, translateResponse{
		TranslatedText: h.translator.Translate(r.Context(), req.Text, from, to),
	})
}

func language(field, code string) (string, error) {
	normalized, err := domain.NormalizeLanguage(code)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	if normalized == "" {
		return "", fmt.Errorf("%s: this field is required", field)
	}
	return normalized, nil
}
