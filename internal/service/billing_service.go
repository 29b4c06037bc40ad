package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"lumenpress/internal/domain"
	"lumenpress/internal/repository"
)

// Productos vendibles.
const (
	ProductBook    = "book"
	ProductPremium = "premium"
)

var (
	ErrBillingDisabled = errors.New("billing not configured")
	ErrUnknownProduct  = errors.New("unknown product")
	ErrBadSignature    = errors.New("webhook signature invalid")
)

// BillingConfig agrupa las claves y precios de Stripe.
type BillingConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	PriceBook      string
	PricePremium   string
	PublicBaseURL  string
	SuccessURL     string
	AccountURL     string
}

// CheckoutClient abstrae las llamadas a Stripe para poder testear la
// reconciliación sin red.
type CheckoutClient interface {
	NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeCheckoutClient struct{}

func (stripeCheckoutClient) NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (stripeCheckoutClient) GetSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.Get(id, params)
}

// BillingService reconcilia eventos de pago con los entitlements del
// usuario. El callback de redirect y el webhook convergen en el mismo efecto
// y toleran ejecutarse dos veces.
type BillingService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	checkout  CheckoutClient
	cfg       BillingConfig
	construct func(payload []byte, header, secret string) (stripe.Event, error)
}

func NewBillingService(logger *zap.Logger, users repository.UserRepository, cfg BillingConfig) *BillingService {
	stripe.Key = cfg.SecretKey
	return &BillingService{
		logger:    logger,
		users:     users,
		checkout:  stripeCheckoutClient{},
		cfg:       cfg,
		construct: webhook.ConstructEvent,
	}
}

// Enabled indica si hay clave secreta configurada.
func (s *BillingService) Enabled() bool {
	return s.cfg.SecretKey != ""
}

// PublishableKey expone la clave pública para el frontend.
func (s *BillingService) PublishableKey() string {
	return s.cfg.PublishableKey
}

// AccountURL es el destino del browser cuando la confirmación falla.
func (s *BillingService) AccountURL() string {
	return s.cfg.AccountURL
}

// CreateCheckout abre una sesión de checkout: pago único para el libro,
// suscripción para premium. El user id viaja en metadata para que ambos
// callbacks puedan aplicar entitlements.
func (s *BillingService) CreateCheckout(_ context.Context, userID, product string, embedded bool) (*stripe.CheckoutSession, error) {
	if !s.Enabled() {
		return nil, ErrBillingDisabled
	}

	var price, mode string
	switch product {
	case ProductBook:
		price, mode = s.cfg.PriceBook, string(stripe.CheckoutSessionModePayment)
	case ProductPremium:
		price, mode = s.cfg.PricePremium, string(stripe.CheckoutSessionModeSubscription)
	default:
		return nil, ErrUnknownProduct
	}
	if price == "" {
		return nil, ErrBillingDisabled
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(price), Quantity: stripe.Int64(1)},
		},
	}
	confirmURL := s.cfg.PublicBaseURL + "/stripe/checkout-success?session_id={CHECKOUT_SESSION_ID}"
	if embedded {
		params.UIMode = stripe.String("embedded")
		params.ReturnURL = stripe.String(confirmURL)
	} else {
		params.SuccessURL = stripe.String(confirmURL)
		params.CancelURL = stripe.String(s.cfg.PublicBaseURL + s.cfg.AccountURL)
	}
	params.AddMetadata("user_id", userID)
	params.AddMetadata("product", product)

	return s.checkout.NewSession(params)
}

// ConfirmCheckout es el callback síncrono de redirect: trae la sesión
// autoritativa de Stripe, aplica entitlements si está paga y devuelve la URL
// de éxito. Cualquier error se traduce en redirect a la cuenta, nunca en un
// fallo visible.
func (s *BillingService) ConfirmCheckout(ctx context.Context, sessionID string) (string, error) {
	if !s.Enabled() || strings.TrimSpace(sessionID) == "" {
		return "", ErrBillingDisabled
	}
	sess, err := s.checkout.GetSession(sessionID, nil)
	if err != nil {
		return "", err
	}
	if !sessionPaid(sess) {
		return "", errors.New("checkout session not paid")
	}
	if err := s.applyCheckoutSession(ctx, sess); err != nil {
		return "", err
	}
	return s.cfg.SuccessURL, nil
}

// HandleWebhook verifica la firma del evento y lo aplica. Un fallo de firma
// devuelve error (el handler responde 4xx); un fallo del handler interno se
// loguea y se traga para no alimentar el retry storm del proveedor.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.construct(payload, sigHeader, s.cfg.WebhookSecret)
	if err != nil {
		return ErrBadSignature
	}
	if err := s.applyEvent(ctx, event); err != nil {
		s.logger.Error("webhook apply failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
	return nil
}

func (s *BillingService) applyEvent(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		if !sessionPaid(&sess) {
			return nil
		}
		return s.applyCheckoutSession(ctx, &sess)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		return s.users.SetSubscriptionByCustomer(ctx, customerID(sub.Customer), domain.SubscriptionFree)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		status := domain.SubscriptionFree
		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			status = domain.SubscriptionPremium
		}
		return s.users.SetSubscriptionByCustomer(ctx, customerID(sub.Customer), status)

	case "invoice.payment_failed":
		s.logger.Warn("invoice payment failed", zap.String("event_id", event.ID))
		return nil

	default:
		// Tipos no reconocidos se ignoran.
		return nil
	}
}

// applyCheckoutSession aplica los entitlements de una sesión paga. Todos los
// updates son SET absolutos: correr esto dos veces converge al mismo estado.
func (s *BillingService) applyCheckoutSession(ctx context.Context, sess *stripe.CheckoutSession) error {
	userID := sess.Metadata["user_id"]
	if userID == "" {
		return nil
	}
	if cust := customerID(sess.Customer); cust != "" {
		if err := s.users.SetStripeCustomer(ctx, userID, cust); err != nil {
			return err
		}
	}
	switch sess.Metadata["product"] {
	case ProductBook:
		return s.users.GrantBook(ctx, userID)
	case ProductPremium:
		return s.users.SetSubscription(ctx, userID, domain.SubscriptionPremium)
	}
	return nil
}

// sessionPaid decide si la sesión se considera paga. Para suscripciones el
// payment_status no es confiable en el primer cobro, así que la sola
// presencia de la suscripción cuenta como pagado.
func sessionPaid(sess *stripe.CheckoutSession) bool {
	if sess == nil {
		return false
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return true
	}
	return sess.Mode == stripe.CheckoutSessionModeSubscription && sess.Subscription != nil && sess.Subscription.ID != ""
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
