// Package transform converts between backend cart payloads and the
// storefront's normalized cart model.
package transform

import (
	"fmt"
	"strings"

	"storefront/internal/backend"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Transformer converts backend shapes into model shapes and back.
type Transformer struct {
	imageBaseURL string
	logger       zerolog.Logger
}

// New creates a transformer. imageBaseURL prefixes content-delivery public
// ids when a payload carries no direct image URL.
func New(imageBaseURL string, logger zerolog.Logger) *Transformer {
	return &Transformer{
		imageBaseURL: strings.TrimSuffix(imageBaseURL, "/"),
		logger:       logger.With().Str("component", "cart-transformer").Logger(),
	}
}

// CartItem converts a backend cart line into a model.CartItem. The key is
// left empty; the cart store derives it from the customizations.
func (t *Transformer) CartItem(item backend.CartItem) model.CartItem {
	out := model.CartItem{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: nullable(item.UnitPrice),
	}

	var productQuestions []backend.Question
	if p := item.Product; p != nil {
		out.Name = p.Name
		out.Description = p.Description
		out.ImageURL = t.ImageURL(p.ImageURL, p.ImagePublicID)
		out.Price = p.Price.InexactFloat64()
		out.SalePrice = nullable(p.SalePrice)
		productQuestions = p.Questions
		out.Questions = t.Questions(p.Questions)
	}

	cost := decimal.Zero
	out.Customizations = make([]model.CartItemCustomization, 0, len(item.Customizations))
	for _, c := range item.Customizations {
		out.Customizations = append(out.Customizations, t.customization(c, productQuestions))
		if c.AdditionalPrice.Valid {
			cost = cost.Add(c.AdditionalPrice.Decimal)
		}
	}
	out.CustomizationCost = cost.InexactFloat64()

	return out
}

func (t *Transformer) customization(c backend.Customization, productQuestions []backend.Question) model.CartItemCustomization {
	out := model.CartItemCustomization{
		QuestionID:    c.OptionID,
		QuestionText:  c.QuestionText,
		AnswerID:      c.SelectedAnswer,
		TextValue:     c.CustomerInput,
		ImagePublicID: c.SelectedValueImagePublicID,
		ImageURL:      t.ImageURL(c.SelectedValueImageURL, c.SelectedValueImagePublicID),
		FileURL:       c.FileURL,
		FilePublicID:  c.FilePublicID,
	}

	q := c.Question
	if q == nil {
		for i := range productQuestions {
			if productQuestions[i].ID == c.OptionID {
				q = &productQuestions[i]
				break
			}
		}
	}
	if q == nil {
		return out
	}

	if out.QuestionText == "" {
		out.QuestionText = q.QuestionText
	}
	if c.SelectedAnswer != "" {
		out.AnswerText = c.SelectedAnswer
		for _, a := range q.Answers {
			if a.ID == c.SelectedAnswer {
				out.AnswerText = a.AnswerText
				break
			}
		}
	}
	return out
}

// Questions converts backend question definitions.
func (t *Transformer) Questions(in []backend.Question) []model.Question {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Question, 0, len(in))
	for _, q := range in {
		mq := model.Question{
			ID:         q.ID,
			Type:       model.QuestionType(q.Type),
			Text:       q.QuestionText,
			Required:   q.Required,
			ExtraPrice: amount(q.ExtraPrice),
		}
		if !mq.Type.IsValid() {
			t.logger.Warn().Str("question_id", q.ID).Str("type", q.Type).Msg("unknown question type")
		}
		for _, a := range q.Answers {
			mq.Answers = append(mq.Answers, model.Answer{
				ID:         a.ID,
				Text:       a.AnswerText,
				ExtraPrice: amount(a.ExtraPrice),
				ImageURL:   a.ImageURL,
			})
		}
		out = append(out, mq)
	}
	return out
}

// Product converts a catalog product.
func (t *Transformer) Product(p backend.Product) model.Product {
	return model.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    t.ImageURL(p.ImageURL, p.ImagePublicID),
		Price:       p.Price.InexactFloat64(),
		SalePrice:   nullable(p.SalePrice),
		Questions:   t.Questions(p.Questions),
	}
}

// ToBackendCustomizations builds the outgoing customization payload. The
// additional price is always taken from the question definitions, never from
// client state. Unknown questions or answers still produce a record with a
// best-effort label and zero additional price.
func (t *Transformer) ToBackendCustomizations(customizations []model.CartItemCustomization, questions []model.Question) []backend.CustomizationPayload {
	out := make([]backend.CustomizationPayload, 0, len(customizations))
	for _, c := range customizations {
		p := backend.CustomizationPayload{
			OptionID:                   c.QuestionID,
			SelectedAnswer:             c.AnswerID,
			CustomerInput:              c.TextValue,
			SelectedValueImageURL:      c.ImageURL,
			SelectedValueImagePublicID: c.ImagePublicID,
			FileURL:                    c.FileURL,
			FilePublicID:               c.FilePublicID,
		}

		q, ok := model.FindQuestion(questions, c.QuestionID)
		if !ok {
			t.logger.Warn().Str("question_id", c.QuestionID).Msg("customization question not found")
			p.QuestionText = c.QuestionText
			if p.QuestionText == "" {
				p.QuestionText = fmt.Sprintf("Question %s", c.QuestionID)
			}
			out = append(out, p)
			continue
		}

		p.QuestionText = q.Text
		switch {
		case c.AnswerID != "":
			if a, found := q.FindAnswer(c.AnswerID); found {
				p.AdditionalPrice = a.ExtraPrice
			} else {
				t.logger.Warn().
					Str("question_id", c.QuestionID).
					Str("answer_id", c.AnswerID).
					Msg("customization answer not found")
			}
		case hasValue(c):
			p.AdditionalPrice = q.ExtraPrice
		}
		out = append(out, p)
	}
	return out
}

// CustomizationCost sums the additional prices the customizations add,
// resolved against the question definitions.
func (t *Transformer) CustomizationCost(customizations []model.CartItemCustomization, questions []model.Question) float64 {
	total := decimal.Zero
	for _, p := range t.ToBackendCustomizations(customizations, questions) {
		total = total.Add(decimal.NewFromFloat(p.AdditionalPrice))
	}
	return total.InexactFloat64()
}

// ImageURL returns direct when set, otherwise builds a URL from publicID.
func (t *Transformer) ImageURL(direct, publicID string) string {
	if direct != "" {
		return direct
	}
	if publicID == "" {
		return ""
	}
	if strings.HasPrefix(publicID, "http://") || strings.HasPrefix(publicID, "https://") || t.imageBaseURL == "" {
		return publicID
	}
	return t.imageBaseURL + "/" + strings.TrimPrefix(publicID, "/")
}

func hasValue(c model.CartItemCustomization) bool {
	return strings.TrimSpace(c.TextValue) != "" || c.ImagePublicID != "" || c.ImageURL != "" ||
		c.FileURL != "" || c.FilePublicID != ""
}

func nullable(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func amount(d decimal.NullDecimal) float64 {
	if !d.Valid {
		return 0
	}
	return d.Decimal.InexactFloat64()
}
