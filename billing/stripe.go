package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"openfashion/database"
	"openfashion/logger"
	"openfashion/metrics"
	"openfashion/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownTier      = errors.New("unknown subscription tier")
)

const subscriptionPeriod = 30 * 24 * time.Hour

// Options carries the Stripe settings from config.
type Options struct {
	SecretKey      string
	WebhookSecret  string
	PremiumPriceID string
	FrontendURL    string
}

// Result is the JSON body returned by webhook and cancel operations.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type SubscriptionIntent struct {
	SubscriptionID string  `json:"subscription_id"`
	ClientSecret   *string `json:"client_secret"`
}

// Service talks to Stripe and keeps user subscription fields in step with it.
type Service struct {
	api   *client.API
	users database.UserRepository
	opts  Options
	now   func() time.Time
}

func NewService(opts Options, users database.UserRepository) *Service {
	s := &Service{users: users, opts: opts, now: time.Now}
	if opts.SecretKey != "" {
		s.api = client.New(opts.SecretKey, nil)
	}
	return s
}

func (s *Service) Enabled() bool { return s.api != nil }

// PriceFor maps a tier id, alias or raw Stripe price id to a price id.
func (s *Service) PriceFor(id string) (string, error) {
	if tier, ok := Tier(id); ok {
		if tier.ID == TierPremium && s.opts.PremiumPriceID != "" {
			return s.opts.PremiumPriceID, nil
		}
		return "", fmt.Errorf("%w: no Stripe price configured for %s", ErrUnknownTier, tier.ID)
	}
	if strings.HasPrefix(id, "price_") {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTier, id)
}

// EnsureCustomer returns the Stripe customer for email, creating it if needed.
func (s *Service) EnsureCustomer(ctx context.Context, email, name string) (string, error) {
	if !s.Enabled() {
		return "", ErrBillingDisabled
	}
	list := &stripe.CustomerListParams{Email: stripe.String(email)}
	list.Limit = stripe.Int64(1)
	list.Context = ctx
	it := s.api.Customers.List(list)
	if it.Next() {
		metrics.ObserveUpstream("stripe", nil)
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		metrics.ObserveUpstream("stripe", err)
		return "", fmt.Errorf("list customers: %w", err)
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	cust, err := s.api.Customers.New(params)
	metrics.ObserveUpstream("stripe", err)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateSubscription opens an incomplete subscription whose first invoice
// the client confirms with the returned secret.
func (s *Service) CreateSubscription(ctx context.Context, customerID, priceID string) (*SubscriptionIntent, error) {
	if !s.Enabled() {
		return nil, ErrBillingDisabled
	}
	price, err := s.PriceFor(priceID)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionParams{
		Customer:        stripe.String(customerID),
		Items:           []*stripe.SubscriptionItemsParams{{Price: stripe.String(price)}},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
		CollectionMethod: stripe.String("charge_automatically"),
	}
	params.AddExpand("latest_invoice.confirmation_secret")
	params.Context = ctx

	sub, err := s.api.Subscriptions.New(params)
	metrics.ObserveUpstream("stripe", err)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	intent := &SubscriptionIntent{SubscriptionID: sub.ID}
	if sub.LastResponse != nil {
		raw := gjson.ParseBytes(sub.LastResponse.RawJSON)
		for _, path := range []string{"latest_invoice.confirmation_secret.client_secret", "latest_invoice.payment_intent.client_secret"} {
			if v := raw.Get(path); v.Exists() && v.String() != "" {
				secret := v.String()
				intent.ClientSecret = &secret
				break
			}
		}
	}
	return intent, nil
}

// CreateCheckoutSession starts a hosted checkout for tierID.
func (s *Service) CreateCheckoutSession(ctx context.Context, email, tierID, successURL, cancelURL string) (*CheckoutSession, error) {
	if !s.Enabled() {
		return nil, ErrBillingDisabled
	}
	tier, ok := Tier(tierID)
	if !ok || tier.Price <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tierID)
	}
	customerID, err := s.EnsureCustomer(ctx, email, "")
	if err != nil {
		return nil, err
	}
	if successURL == "" {
		successURL = s.opts.FrontendURL + "/premium/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if cancelURL == "" {
		cancelURL = s.opts.FrontendURL + "/premium"
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{s.lineItem(tier)},
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		Metadata: map[string]string{
			"tier_id":    tier.ID,
			"user_email": email,
		},
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	metrics.ObserveUpstream("stripe", err)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreateEmbeddedCheckout starts an embedded premium checkout and returns
// its client secret.
func (s *Service) CreateEmbeddedCheckout(ctx context.Context, email string) (string, error) {
	if !s.Enabled() {
		return "", ErrBillingDisabled
	}
	tier, _ := Tier(TierPremium)
	params := &stripe.CheckoutSessionParams{
		UIMode:        stripe.String(string(stripe.CheckoutSessionUIModeEmbedded)),
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems:     []*stripe.CheckoutSessionLineItemParams{s.lineItem(tier)},
		ReturnURL:     stripe.String(s.opts.FrontendURL + "/premium/success?session_id={CHECKOUT_SESSION_ID}"),
		CustomerEmail: stripe.String(email),
		Metadata: map[string]string{
			"tier_id":    tier.ID,
			"user_email": email,
		},
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	metrics.ObserveUpstream("stripe", err)
	if err != nil {
		return "", fmt.Errorf("create embedded checkout: %w", err)
	}
	return sess.ClientSecret, nil
}

func (s *Service) lineItem(tier models.SubscriptionTier) *stripe.CheckoutSessionLineItemParams {
	if tier.ID == TierPremium && s.opts.PremiumPriceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(s.opts.PremiumPriceID),
			Quantity: stripe.Int64(1),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(tier.Currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(tier.Name + " Plan"),
				Description: stripe.String(tier.Description),
			},
			UnitAmount: stripe.Int64(int64(tier.Price * 100)),
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(tier.Interval),
			},
		},
		Quantity: stripe.Int64(1),
	}
}

// CancelAtPeriodEnd schedules cancellation of the user's active
// subscription and flags the account as pending cancellation.
func (s *Service) CancelAtPeriodEnd(ctx context.Context, email string) (*Result, error) {
	if !s.Enabled() {
		return nil, ErrBillingDisabled
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == "" {
		return &Result{Status: "error", Message: "No Stripe customer ID found."}, nil
	}

	list := &stripe.SubscriptionListParams{
		Customer: stripe.String(user.StripeCustomerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	list.Limit = stripe.Int64(1)
	list.Context = ctx
	it := s.api.Subscriptions.List(list)
	if !it.Next() {
		if err := it.Err(); err != nil {
			metrics.ObserveUpstream("stripe", err)
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
		return &Result{Status: "error", Message: "No active subscription found."}, nil
	}
	subID := it.Subscription().ID

	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	_, err = s.api.Subscriptions.Update(subID, params)
	metrics.ObserveUpstream("stripe", err)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	pending := true
	if err := s.users.SetSubscriptionByEmail(ctx, email, database.SubscriptionUpdate{PendingCancellation: &pending}); err != nil {
		return nil, err
	}
	return &Result{Status: "success", Message: "Subscription will be cancelled at period end."}, nil
}

// HandleWebhook verifies sigHeader against the endpoint secret and applies
// the subscription lifecycle events to the user record.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (*Result, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.opts.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		logger.Get().Warn("[Billing] webhook rejected", zap.Error(err))
		return nil, ErrInvalidSignature
	}
	if event.Data == nil {
		return &Result{Status: "ignored", Message: "Event has no data"}, nil
	}
	obj := gjson.ParseBytes(event.Data.Raw)

	logger.Get().Info("[Billing] webhook received", zap.String("type", string(event.Type)), zap.String("id", event.ID))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.checkoutCompleted(ctx, obj)
	case stripe.EventTypeCustomerSubscriptionCreated:
		return s.subscriptionCreated(ctx, obj)
	case stripe.EventTypeCustomerSubscriptionUpdated:
		return s.subscriptionUpdated(ctx, obj)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		return s.subscriptionDeleted(ctx, obj)
	default:
		return &Result{Status: "ignored", Message: "Unhandled event type: " + string(event.Type)}, nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, session gjson.Result) (*Result, error) {
	email := session.Get("metadata.user_email").String()
	if email == "" {
		email = session.Get("customer_email").String()
	}
	if email == "" {
		return nil, errors.New("checkout session carries no user email")
	}
	tierID := session.Get("metadata.tier_id").String()
	tier, ok := Tier(tierID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tierID)
	}

	status := models.SubscriptionPremium
	end := s.now().UTC().Add(subscriptionPeriod)
	customerID := session.Get("customer").String()
	subID := session.Get("subscription").String()
	upd := database.SubscriptionUpdate{
		Status:         &status,
		Tier:           &tier.ID,
		EndDate:        &end,
		CustomerID:     &customerID,
		SubscriptionID: &subID,
	}
	if err := s.users.SetSubscriptionByEmail(ctx, email, upd); err != nil {
		return nil, fmt.Errorf("activate subscription for %s: %w", email, err)
	}
	return &Result{Status: "success", Message: "Subscription activated for " + email, Tier: tier.ID}, nil
}

func (s *Service) subscriptionCreated(ctx context.Context, sub gjson.Result) (*Result, error) {
	customerID := sub.Get("customer").String()
	user, err := s.users.FindByStripeCustomer(ctx, customerID)
	if errors.Is(err, database.ErrNotFound) {
		return &Result{Status: "error", Message: "User not found"}, nil
	}
	if err != nil {
		return nil, err
	}

	status := models.SubscriptionPremium
	end, ok := periodEnd(sub)
	if !ok {
		end = s.now().UTC().Add(subscriptionPeriod)
	}
	subID := sub.Get("id").String()
	upd := database.SubscriptionUpdate{Status: &status, EndDate: &end, SubscriptionID: &subID}
	if err := s.users.SetSubscriptionByCustomer(ctx, customerID, upd); err != nil {
		return nil, err
	}
	return &Result{Status: "success", Message: "Subscription created for " + user.Email}, nil
}

func (s *Service) subscriptionUpdated(ctx context.Context, sub gjson.Result) (*Result, error) {
	customerID := sub.Get("customer").String()
	user, err := s.users.FindByStripeCustomer(ctx, customerID)
	if errors.Is(err, database.ErrNotFound) {
		return &Result{Status: "error", Message: "User not found"}, nil
	}
	if err != nil {
		return nil, err
	}

	subID := sub.Get("id").String()
	upd := database.SubscriptionUpdate{SubscriptionID: &subID}
	if end, ok := periodEnd(sub); ok {
		upd.EndDate = &end
	} else {
		upd.ClearEndDate = true
	}
	if err := s.users.SetSubscriptionByCustomer(ctx, customerID, upd); err != nil {
		return nil, err
	}
	return &Result{Status: "success", Message: "Subscription updated for " + user.Email}, nil
}

func (s *Service) subscriptionDeleted(ctx context.Context, sub gjson.Result) (*Result, error) {
	customerID := sub.Get("customer").String()
	basic := models.SubscriptionBasic
	tier := TierBasic
	none := ""
	pending := false
	upd := database.SubscriptionUpdate{
		Status:              &basic,
		Tier:                &tier,
		SubscriptionID:      &none,
		ClearEndDate:        true,
		PendingCancellation: &pending,
	}
	err := s.users.SetSubscriptionByCustomer(ctx, customerID, upd)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	return &Result{Status: "success", Message: "Subscription cancelled for customer " + customerID}, nil
}

// periodEnd reads current_period_end from the subscription or, on newer API
// versions, from its first item.
func periodEnd(sub gjson.Result) (time.Time, bool) {
	for _, path := range []string{"current_period_end", "items.data.0.current_period_end"} {
		if v := sub.Get(path); v.Exists() && v.Int() > 0 {
			return time.Unix(v.Int(), 0).UTC(), true
		}
	}
	return time.Time{}, false
}
