package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/infra/logging"
	"signals-platform/internal/usecase"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidArgument)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s", domain.ErrInvalidArgument, name)
	}
	return id, nil
}

// remoteIP reads the peer address only. ClientIP rewrites it for trusted proxies.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ===== Auth =====

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeBody(w, r, &creds); err != nil {
		s.fail(w, r, err)
		return
	}
	// a fresh session id on every login so a planted cookie never gains the account
	sid := uuid.NewString()
	u, err := s.svc.Auth.Login(r.Context(), sid, remoteIP(r), creds)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sessions.Mint(w, sid); err != nil {
		_ = s.svc.Auth.Logout(context.WithoutCancel(r.Context()), sid)
		s.fail(w, r, err)
		return
	}
	if prev := sessionID(r.Context()); prev != "" {
		if err := s.svc.Auth.Logout(r.Context(), prev); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("previous session cleanup failed")
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := decodeBody(w, r, &reg); err != nil {
		s.fail(w, r, err)
		return
	}
	if reg.ConfirmURL == "" {
		reg.ConfirmURL = s.opts.ConfirmURL
	}
	if err := s.svc.Auth.Register(r.Context(), reg); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "verification_sent"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Auth.Logout(r.Context(), sessionID(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Auth.Me(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// ===== Catalog =====

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	s.listOffers(w, r, model.OfferType(r.URL.Query().Get("type")))
}

func (s *Server) handleListOffersByType(w http.ResponseWriter, r *http.Request) {
	s.listOffers(w, r, model.OfferType(chi.URLParam(r, "type")))
}

func (s *Server) listOffers(w http.ResponseWriter, r *http.Request, t model.OfferType) {
	offers, err := s.svc.Catalog.List(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": offerViews(offers)})
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.svc.Catalog.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOfferView(o))
}

// handleResolveOffer takes the same query the pricing pages link to checkout with: ?offer=, or ?type=&plan=.
func (s *Server) handleResolveOffer(w http.ResponseWriter, r *http.Request) {
	q, err := offerQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.svc.Catalog.Resolve(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOfferView(o))
}

func offerQuery(r *http.Request) (model.OfferQuery, error) {
	v := r.URL.Query()
	q := model.OfferQuery{Type: model.OfferType(v.Get("type")), PlanName: v.Get("plan")}
	if raw := v.Get("offer"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, fmt.Errorf("%w: bad offer id", domain.ErrInvalidArgument)
		}
		q.ID = id
	}
	return q, nil
}

type offerView struct {
	*model.Offer
	AccessLabel string `json:"access_label"`
}

func newOfferView(o *model.Offer) offerView {
	return offerView{Offer: o, AccessLabel: o.AccessLabel()}
}

func offerViews(offers []*model.Offer) []offerView {
	out := make([]offerView, 0, len(offers))
	for _, o := range offers {
		out = append(out, newOfferView(o))
	}
	return out
}

func (s *Server) handleContactChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.svc.Checkout.ContactChannels()})
}

func (s *Server) handleHomepage(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Content.Homepage(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ===== Checkout =====

func (s *Server) handleCheckoutCurrent(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Checkout.Current(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCheckoutStart(w http.ResponseWriter, r *http.Request) {
	var q model.OfferQuery
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &q); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if q.IsZero() {
		var err error
		if q, err = offerQuery(r); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	st, err := s.svc.Checkout.Start(r.Context(), sessionID(r.Context()), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCheckoutMethod(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContactMethod model.ContactMethod `json:"contact_method"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Checkout.SelectContactMethod(r.Context(), sessionID(r.Context()), body.ContactMethod)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCheckoutInfo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContactInfo string `json:"contact_info"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Checkout.SetContactInfo(r.Context(), sessionID(r.Context()), body.ContactInfo)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCheckoutSubmit answers a failed submission with the toast plus the preserved state.
func (s *Server) handleCheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Checkout.Submit(r.Context(), sessionID(r.Context()))
	if err != nil {
		status, t := toastFor(err)
		if status >= http.StatusInternalServerError {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, status, struct {
			Toast
			State *model.CheckoutState `json:"state,omitempty"`
		}{Toast: t, State: st})
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleCheckoutReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Checkout.Reset(r.Context(), sessionID(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Dashboard & layouts =====

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard.Dashboard(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	all, err := s.svc.Layouts.List(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": all})
}

func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	l, err := s.svc.Layouts.Get(r.Context(), currentUser(r.Context()).ID, chi.URLParam(r, "surface"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleSaveLayout(w http.ResponseWriter, r *http.Request) {
	surface := chi.URLParam(r, "surface")
	u := currentUser(r.Context())
	if surface == "admin" && !u.IsStaff {
		s.fail(w, r, domain.ErrForbidden)
		return
	}
	var body struct {
		Widgets []string `json:"widgets"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.svc.Layouts.Save(r.Context(), u.ID, surface, body.Widgets)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ===== Admin console =====

func adminActor(r *http.Request) usecase.Actor {
	return usecase.Actor{Email: currentUser(r.Context()).Email, Source: "web"}
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Console.Dashboard(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type paymentsListView struct {
	Items []*model.PendingPayment `json:"items"`
	Busy  []int64                 `json:"busy"`
	// Stale is set when an action succeeded but the list could not be reloaded.
	Stale bool `json:"stale,omitempty"`
}

func (s *Server) writePayments(w http.ResponseWriter, list []*model.PendingPayment) {
	writeJSON(w, http.StatusOK, paymentsListView{Items: list, Busy: s.svc.Console.BusyRows()})
}

func (s *Server) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Console.List(r.Context(), sessionID(r.Context()), model.PaymentStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writePayments(w, list)
}

func (s *Server) handleAdminValidate(w http.ResponseWriter, r *http.Request) {
	s.adminAction(w, r, s.svc.Console.Validate)
}

func (s *Server) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	s.adminAction(w, r, s.svc.Console.Cancel)
}

type consoleAction func(ctx context.Context, sid string, actor usecase.Actor, id int64, filter model.PaymentStatus) ([]*model.PendingPayment, error)

func (s *Server) adminAction(w http.ResponseWriter, r *http.Request, act consoleAction) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filter := model.PaymentStatus(r.URL.Query().Get("status"))
	list, err := act(r.Context(), sessionID(r.Context()), adminActor(r), id, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, paymentsListView{Items: []*model.PendingPayment{}, Busy: s.svc.Console.BusyRows(), Stale: true})
		return
	}
	s.writePayments(w, list)
}

func (s *Server) handleAdminHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	actions, err := s.svc.Console.History(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": actions})
}

func (s *Server) handleAdminRecentActions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	actions, err := s.svc.Console.RecentActions(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": actions})
}

// ===== Content blocks =====

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.svc.Content.ListBlocks(r.Context(), sessionID(r.Context()), r.URL.Query().Get("page"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": blocks})
}

func (s *Server) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	var b model.ContentBlock
	if err := decodeBody(w, r, &b); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.svc.Content.CreateBlock(r.Context(), sessionID(r.Context()), &b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var b model.ContentBlock
	if err := decodeBody(w, r, &b); err != nil {
		s.fail(w, r, err)
		return
	}
	b.ID = id
	out, err := s.svc.Content.UpdateBlock(r.Context(), sessionID(r.Context()), &b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Content.DeleteBlock(r.Context(), sessionID(r.Context()), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
