package page

import (
	"context"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/notify"
	"github.com/iliyamo/cinema-seat-checkout/internal/ticket"
)

// CheckoutPage is one mounted payment page.
type CheckoutPage struct {
	ident identity.Identity

	Notifier     *notify.Recorder
	Orchestrator *checkout.Orchestrator
}

// CheckoutParams describe a checkout page opened directly, e.g. after a
// reload with the booking id in the URL.
type CheckoutParams struct {
	checkout.Params
	Identity identity.Identity
	Session  string
}

// MountCheckout builds and starts a checkout page outside of a seat-page
// hand-off.  Start errors are reported through the page view.
func MountCheckout(ctx context.Context, deps *Deps, p CheckoutParams) *CheckoutPage {
	backend := deps.Backend(p.Identity)
	log := logger.Or(deps.Logger).WithShowtime(p.ShowtimeID)
	transport := newTransport(deps, backend, p.Session, log)
	if p.Email == "" {
		p.Email = p.Identity.Email
	}
	if p.UserID == 0 {
		p.UserID = p.Identity.UserID
	}
	cp := newCheckoutPage(deps, backend, transport, p.Params, p.Identity)
	if err := cp.Orchestrator.Start(ctx); err != nil {
		log.Warn("checkout start failed", "error", err)
	}
	return cp
}

func newCheckoutPage(deps *Deps, backend api.Backend, transport checkout.HoldTransport, p checkout.Params, id identity.Identity) *CheckoutPage {
	rec := notify.NewRecorder()
	o := checkout.New(backend, transport, rec, p, checkout.Config{
		PollInterval:   deps.Settings.PaymentPoll,
		RedirectDelay:  deps.Settings.RedirectDelay,
		RequestTimeout: deps.Settings.RequestTimeout,
		Clock:          deps.clock(),
		Logger:         deps.Logger,
		Publisher:      deps.Publisher,
	})
	return &CheckoutPage{ident: id, Notifier: rec, Orchestrator: o}
}

// Owner returns the identity the page was opened for.
func (cp *CheckoutPage) Owner() identity.Identity { return cp.ident }

// Regenerate requests a fresh QR for the same purchase.
func (cp *CheckoutPage) Regenerate(ctx context.Context) error {
	return cp.Orchestrator.Regenerate(ctx)
}

// Back abandons the purchase and navigates to seat selection.
func (cp *CheckoutPage) Back(ctx context.Context) { cp.Orchestrator.Back(ctx) }

// SetHidden pauses the payment poll while the page is not visible.
func (cp *CheckoutPage) SetHidden(hidden bool) { cp.Orchestrator.SetHidden(hidden) }

// Teardown abandons the purchase with keepalive delivery.
func (cp *CheckoutPage) Teardown() { cp.Orchestrator.Teardown(checkout.TeardownOptions{}) }

// Wait blocks until background work of the page has finished.
func (cp *CheckoutPage) Wait() { cp.Orchestrator.Wait() }

// CheckoutView is the render state of a checkout page.
type CheckoutView struct {
	checkout.View
	Notices notify.View `json:"notices"`
}

// View returns the render state.
func (cp *CheckoutPage) View() CheckoutView {
	return CheckoutView{View: cp.Orchestrator.View(), Notices: cp.Notifier.View()}
}

// QR returns the PNG of the current payment QR.
func (cp *CheckoutPage) QR() ([]byte, error) {
	v := cp.Orchestrator.View()
	return ticket.QRImage(model.PaymentSession{
		QRBase64:        v.QRBase64,
		CheckoutURL:     v.CheckoutURL,
		TransferContent: v.TransferContent,
	})
}
