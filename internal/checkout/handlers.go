package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/leafmarket-checkout/internal/cart"
	"github.com/noah-isme/leafmarket-checkout/internal/common"
	"github.com/noah-isme/leafmarket-checkout/internal/flight"
	"github.com/noah-isme/leafmarket-checkout/internal/obs"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

var (
	requestValidateOnce sync.Once
	requestValidate     *validator.Validate
)

func quoteValidator() *validator.Validate {
	requestValidateOnce.Do(func() {
		requestValidate = validator.New(validator.WithRequiredStructEnabled())
	})
	return requestValidate
}

// QuoteRequest is the body of POST /api/v1/checkout/quote. Balances, the active order lock and
// the rate table are loaded server-side.
type QuoteRequest struct {
	CartItems                []cart.LineItem `json:"cartItems" validate:"max=200"`
	FlightDateOptions        []flight.Option `json:"flightDateOptions" validate:"max=60,dive"`
	SelectedFlightDate       string          `json:"selectedFlightDate" validate:"max=64"`
	JoinerReceiverFlightDate string          `json:"joinerReceiverFlightDate" validate:"max=64"`
	Toggles                  Toggles         `json:"toggles"`
	DiscountCode             string          `json:"discountCode" validate:"max=32"`
}

// QuoteResponse pairs a computed summary with an identifier for audit and receipts.
type QuoteResponse struct {
	QuoteID string  `json:"quoteId"`
	Summary Summary `json:"summary"`
}

// Handler serves checkout quotes.
type Handler struct {
	Rates    shipping.RateSource
	Orders   flight.OrderStatusProvider
	Balances BalanceProvider
	Codes    CodeEvaluator
	Policy   Policy
	Logger   zerolog.Logger
}

// Quote builds a checkout session for the authenticated buyer, runs its lookups and returns
// the resulting summary. A disabled checkout is still a successful quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := common.BuyerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req QuoteRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := validateQuote(req); err != nil {
		common.WriteError(w, err)
		return
	}

	ctx := r.Context()
	logger := h.Logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}

	in := Input{
		BuyerID:                  buyerID,
		CartItems:                req.CartItems,
		FlightDateOptions:        req.FlightDateOptions,
		JoinerReceiverFlightDate: req.JoinerReceiverFlightDate,
	}
	if h.Balances != nil {
		bal, err := h.Balances.Balances(ctx, buyerID)
		if err != nil {
			logger.Error().Err(err).Str("buyer_id", buyerID).Msg("checkout_balance_lookup_failed")
			obs.ObserveQuote("error", nil)
			common.JSONError(w, http.StatusBadGateway, "BALANCE_LOOKUP_FAILED", "credit balances are unavailable", nil)
			return
		}
		in.LeafPointsBalance = bal.LeafPoints
		in.PlantCreditsBalance = bal.PlantCredits
	}

	ctl := NewController(in, Deps{
		Rates:  h.Rates,
		Orders: h.Orders,
		Codes:  h.Codes,
		Policy: h.Policy,
		Logger: logger,
	})
	ctl.SetToggles(req.Toggles)
	// Lookup failures are reflected in the summary reasons.
	_ = ctl.RefreshOrderLock(ctx)
	if req.SelectedFlightDate != "" {
		ctl.SelectFlight(req.SelectedFlightDate)
	}
	if !ctl.Breakdown().Empty() {
		_ = ctl.RefreshRates(ctx)
	}
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		_ = ctl.ApplyDiscountCode(ctx, code)
	}

	sum := ctl.Summary()
	result := "ready"
	if sum.CheckoutDisabled {
		result = "disabled"
	}
	obs.ObserveQuote(result, blockingCodes(sum))
	common.Data(w, http.StatusOK, QuoteResponse{QuoteID: uuid.NewString(), Summary: sum})
}

func validateQuote(req QuoteRequest) error {
	details := map[string]string{}
	if err := quoteValidator().Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			details[fe.Namespace()] = fe.Tag()
		}
	}
	if err := cart.Validate(req.CartItems); err != nil {
		details["cartItems"] = err.Error()
	}
	if len(details) == 0 {
		return nil
	}
	return common.NewAppError("VALIDATION_ERROR", "invalid quote request", http.StatusUnprocessableEntity,
		fmt.Errorf("quote request: %w", cart.ErrInvalidInput)).WithDetails(details)
}

func blockingCodes(sum Summary) []string {
	var out []string
	for _, r := range sum.Reasons {
		if r.Blocking {
			out = append(out, r.Code)
		}
	}
	return out
}
