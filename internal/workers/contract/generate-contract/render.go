package generatecontract

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"merchant-onboarding/internal/models"
)

const notAvailable = "N/A"

var contractTemplate = template.Must(template.New("contract").Parse(`MERCHANT PROCESSING AGREEMENT
=============================

Application ID:  {{.ApplicationID}}
Contract ID:     {{.ContractID}}
Agreement Date:  {{.AgreementDate}}
Effective Date:  {{.EffectiveDate}}

PARTIES TO THIS AGREEMENT
-------------------------
MERCHANT INFORMATION
  Business Name:   {{.BusinessName}}
  Business Type:   {{.BusinessType}}
  Industry:        {{.Industry}}
  EIN:             {{.EIN}}
  Annual Revenue:  ${{.AnnualRevenue}}
  Monthly Volume:  ${{.MonthlyVolume}}

OWNER/PRINCIPAL INFORMATION
  Name:            {{.OwnerName}}
  Email:           {{.Email}}
  Phone:           {{.Phone}}
  Address:         {{.Address}}

PROCESSING TERMS & CONDITIONS
-----------------------------
PROCESSING RATES & FEES
  Processing Rate:         {{.Terms.Rate}}
  Transaction Fee:         {{.Terms.TransactionFee}}
  Daily Processing Limit:  {{.Terms.DailyLimit}}
  Monthly Volume Limit:    {{.Terms.MonthlyVolume}}
  Settlement Period:       {{.Terms.Settlement}}
  Contract Length:         {{.Terms.ContractLength}}

PROJECTED REVENUE
  Hand Net Profit:         {{.Terms.HandNetProfit}}

TERMS AND CONDITIONS
--------------------
1. MERCHANT OBLIGATIONS: Merchant agrees to comply with all applicable laws, regulations, and card association rules.
2. SETTLEMENT: Funds will be settled to the designated bank account according to the settlement schedule above.
3. CHARGEBACKS: Merchant is responsible for all chargebacks, fees, and related costs.
4. TERMINATION: Either party may terminate this agreement with 30 days written notice.
5. COMPLIANCE: Merchant must maintain PCI DSS compliance and follow all security protocols.
6. GOVERNING LAW: This agreement is governed by the laws of the United States.

SIGNATURES
----------
Merchant Signature:  /s/ {{.Signature}}    Date: {{.SignedDate}}
Print Name:          {{.OwnerName}}
{{- if .Agreements}}
Accepted:            {{.Agreements}}
{{- end}}

{{.Provider}} Representative:    Date: {{.SignedDate}}
Authorized Representative
`))

type contractData struct {
	ApplicationID string
	ContractID    string
	AgreementDate string
	EffectiveDate string

	BusinessName  string
	BusinessType  string
	Industry      string
	EIN           string
	AnnualRevenue string
	MonthlyVolume string

	OwnerName string
	Email     string
	Phone     string
	Address   string

	Terms      models.Terms
	Signature  string
	Agreements string
	SignedDate string
	Provider   string
}

func render(data contractData) ([]byte, error) {
	var buf bytes.Buffer
	if err := contractTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newContractData(input *Input, terms models.Terms, contractID, provider string, at time.Time) contractData {
	personal, business := input.PersonalData, input.BusinessData

	owner := strings.TrimSpace(models.StringField(personal, "firstName") + " " + models.StringField(personal, "lastName"))
	address := strings.TrimSpace(strings.Join([]string{
		models.StringField(personal, "streetAddress") + ",",
		models.StringField(personal, "city") + ",",
		models.StringField(personal, "state"),
		models.StringField(personal, "zipCode"),
	}, " "))

	return contractData{
		ApplicationID: input.ApplicationID,
		ContractID:    contractID,
		AgreementDate: at.Format("January 02, 2006"),
		EffectiveDate: at.Format("January 02, 2006"),

		BusinessName:  orNA(business, "businessName"),
		BusinessType:  orNA(business, "businessType"),
		Industry:      orNA(business, "industry"),
		EIN:           orNA(business, "ein"),
		AnnualRevenue: orNA(business, "annualRevenue"),
		MonthlyVolume: orNA(business, "monthlyProcessingVolume"),

		OwnerName: owner,
		Email:     orNA(personal, "email"),
		Phone:     orNA(personal, "phone"),
		Address:   address,

		Terms:      termsOrNA(terms),
		Signature:  strings.TrimSpace(input.Signature),
		Agreements: acceptedAgreements(input.Agreements),
		SignedDate: at.Format("01/02/2006"),
		Provider:   provider,
	}
}

func orNA(fields map[string]interface{}, key string) string {
	if v := strings.TrimSpace(models.StringField(fields, key)); v != "" {
		return v
	}
	return notAvailable
}

func termsOrNA(t models.Terms) models.Terms {
	fill := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return notAvailable
		}
		return s
	}
	return models.Terms{
		Rate:                    fill(t.Rate),
		TransactionFee:          fill(t.TransactionFee),
		DailyLimit:              fill(t.DailyLimit),
		MonthlyVolume:           fill(t.MonthlyVolume),
		Settlement:              fill(t.Settlement),
		ContractLength:          fill(t.ContractLength),
		HandNetProfit:           fill(t.HandNetProfit),
		EstimatedMonthlyRevenue: fill(t.EstimatedMonthlyRevenue),
		EstimatedFees:           fill(t.EstimatedFees),
	}
}

// acceptedAgreements lists the accepted agreement keys in a stable order.
func acceptedAgreements(agreements map[string]bool) string {
	var accepted []string
	for _, key := range []string{"terms", "privacy", "compliance", "pricing"} {
		if agreements[key] {
			accepted = append(accepted, key)
		}
	}
	return strings.Join(accepted, ", ")
}
