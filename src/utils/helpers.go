package utils

import (
	"connectwork/src/models"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

const (
	paymentMethodMpesa  = "mpesa"
	accountReferenceMax = 12
)

type PaymentMethod struct {
	Provider  string
	Payer     string
	Payee     string
	Reference string
}

// FormatPaymentMethod builds the tag stored on payments: mpesa:<payer>:<payee>:<reference>.
// payee may be empty when the worker's phone is not known.
func FormatPaymentMethod(payer, payee, reference string) string {
	return strings.Join([]string{paymentMethodMpesa, payer, payee, reference}, ":")
}

func ParsePaymentMethod(tag string) (*PaymentMethod, error) {
	parts := strings.SplitN(tag, ":", 4)
	if len(parts) != 4 || parts[0] != paymentMethodMpesa {
		return nil, fmt.Errorf("unrecognized payment method %q", tag)
	}
	return &PaymentMethod{
		Provider:  parts[0],
		Payer:     parts[1],
		Payee:     parts[2],
		Reference: parts[3],
	}, nil
}

// AccountReference derives the short reference shown on the customer's phone from the job title.
// Falls back to the job id when the title has nothing usable in it.
func AccountReference(title string, jobID uuid.UUID) string {
	ref := strings.ReplaceAll(slug.Make(title), "-", "")
	if ref == "" {
		ref = strings.ReplaceAll(jobID.String(), "-", "")
	}
	ref = strings.ToUpper(ref)
	if len(ref) > accountReferenceMax {
		ref = ref[:accountReferenceMax]
	}
	return ref
}

// PaymentAmount picks what the customer pays: an explicit amount, else the accepted
// application's proposed rate, else the job budget.
func PaymentAmount(override *float64, job *models.Job, app *models.JobApplication) decimal.Decimal {
	if override != nil {
		return decimal.NewFromFloat(*override)
	}
	if app != nil && app.ProposedRate.Valid {
		return app.ProposedRate.Decimal
	}
	return job.Budget
}
