// Package service manages cart sessions: one reconciler per open cart,
// bridged to the HTTP shell, with the quantity dialog parked on channels
// so a scan can wait for operator input across requests.
package service

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/cache"
	"scanline/backend/internal/cart"
	"scanline/backend/internal/domain"
	"scanline/backend/internal/store"
	"scanline/backend/internal/xid"
)

var (
	ErrSessionNotFound = errors.New("service: session not found")
	ErrNoPromptPending = errors.New("service: no prompt pending")
	ErrPromptMismatch  = errors.New("service: prompt id does not match")
	ErrMissingCustomer = errors.New("service: customer is required")
)

type actorKey struct{}

// WithActor stamps the authenticated operator onto the context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the operator set by WithActor.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}

// cartCloser is implemented by writers that persist carts and need to
// release them when a session ends.
type cartCloser interface {
	CloseCart(ctx context.Context, orderID string) error
}

type Service struct {
	repo             store.Repository
	sharedCache      cache.AvailabilityCache
	writer           cart.OrderWriter
	priceList        string
	defaultWarehouse string
	company          string

	mu       sync.Mutex
	sessions map[string]*session
}

func New(repo store.Repository, sharedCache cache.AvailabilityCache, writer cart.OrderWriter, priceList, defaultWarehouse, company string) *Service {
	return &Service{
		repo:             repo,
		sharedCache:      sharedCache,
		writer:           writer,
		priceList:        priceList,
		defaultWarehouse: defaultWarehouse,
		company:          company,
		sessions:         make(map[string]*session),
	}
}

// session holds one open cart, its reconciler, and the dialog bridge.
type session struct {
	id       string
	rec      *cart.Reconciler
	prompter *channelPrompter

	mu      sync.Mutex
	pending *pendingPrompt
}

// pendingPrompt is a dialog parked between requests: the scan goroutine
// waits on the prompter reply channel, and done delivers its final
// outcome once the operator answers.
type pendingPrompt struct {
	prompt domain.QuantityPrompt
	done   chan domain.ScanOutcome
}

type promptReply struct {
	qty    decimal.Decimal
	cancel bool
}

type channelPrompter struct {
	requests chan domain.QuantityPrompt
	replies  chan promptReply
}

func newChannelPrompter() *channelPrompter {
	return &channelPrompter{
		requests: make(chan domain.QuantityPrompt),
		replies:  make(chan promptReply),
	}
}

// ConfirmQuantity hands the prompt to whoever is watching the session and
// blocks until the operator answers. There is no timeout; the scan stays
// parked until confirm or cancel arrives.
func (p *channelPrompter) ConfirmQuantity(ctx context.Context, prompt domain.QuantityPrompt) (decimal.Decimal, error) {
	select {
	case p.requests <- prompt:
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
	select {
	case reply := <-p.replies:
		if reply.cancel {
			return decimal.Zero, cart.ErrPromptCancelled
		}
		return reply.qty, nil
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

// OpenSession creates a cart and its reconciler. The request's policies
// are fixed for the session's lifetime.
func (s *Service) OpenSession(ctx context.Context, req domain.SessionOpenRequest) (*domain.CartView, error) {
	if req.Customer == "" {
		return nil, ErrMissingCustomer
	}

	priceList := req.PriceList
	if priceList == "" {
		priceList = s.priceList
	}
	warehouse := req.Warehouse
	if warehouse == "" {
		warehouse = s.defaultWarehouse
	}

	caps := cart.DefaultCapabilities()
	caps.EnforceMaxQty = req.EnforceMaxQty
	mode := cart.QtyIncrement
	if req.PromptQuantity {
		mode = cart.QtyPrompt
	}

	order := &domain.Order{
		ID:       xid.New("cart"),
		Customer: req.Customer,
	}

	snapCache := s.sharedCache
	if snapCache == nil {
		snapCache = cache.NewSessionAvailabilityCache()
	}

	prompter := newChannelPrompter()
	rec := cart.NewReconciler(s.repo, s.repo, snapCache, s.writer, prompter, func() string { return xid.New("line") }, cart.Config{
		Capabilities:     caps,
		PriceList:        priceList,
		Company:          s.company,
		DefaultWarehouse: warehouse,
		AllowNewRows:     !req.DisallowNewRows,
		QtyMode:          mode,
	}, order)

	sess := &session{id: order.ID, rec: rec, prompter: prompter}

	s.mu.Lock()
	s.sessions[order.ID] = sess
	s.mu.Unlock()

	if actor, ok := ActorFromContext(ctx); ok {
		log.Printf("[service] session %s opened by %s for customer %s", order.ID, actor.Username, req.Customer)
	}

	view := cartView(sess)
	return &view, nil
}

func (s *Service) getSession(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Scan runs the reconciler in its own goroutine so a quantity dialog can
// outlive this request. The scan keeps running on a detached context; the
// response is either the final outcome or a prompt for the operator.
func (s *Service) Scan(ctx context.Context, sessionID, scanText string) (domain.ScanOutcome, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return domain.ScanOutcome{}, err
	}

	done := make(chan domain.ScanOutcome, 1)
	scanCtx := context.WithoutCancel(ctx)
	go func() {
		done <- sess.rec.Scan(scanCtx, scanText)
	}()

	select {
	case outcome := <-done:
		return outcome, nil
	case prompt := <-sess.prompter.requests:
		sess.mu.Lock()
		sess.pending = &pendingPrompt{prompt: prompt, done: done}
		sess.mu.Unlock()
		p := prompt
		return domain.ScanOutcome{
			Status:  domain.OutcomePromptPending,
			Message: "Confirm the quantity to add",
			Prompt:  &p,
		}, nil
	}
}

// ResolvePrompt feeds the operator's answer to the parked scan and waits
// for its final outcome.
func (s *Service) ResolvePrompt(ctx context.Context, sessionID string, req domain.PromptActionRequest) (domain.ScanOutcome, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return domain.ScanOutcome{}, err
	}

	sess.mu.Lock()
	pending := sess.pending
	sess.mu.Unlock()
	if pending == nil {
		return domain.ScanOutcome{}, ErrNoPromptPending
	}
	if req.PromptID != pending.prompt.PromptID {
		return domain.ScanOutcome{}, ErrPromptMismatch
	}

	reply := promptReply{qty: req.Quantity, cancel: req.Action == domain.PromptActionCancel}
	select {
	case sess.prompter.replies <- reply:
	case <-ctx.Done():
		return domain.ScanOutcome{}, ctx.Err()
	}

	outcome := <-pending.done
	sess.mu.Lock()
	sess.pending = nil
	sess.mu.Unlock()
	return outcome, nil
}

func (s *Service) GetCart(_ context.Context, sessionID string) (*domain.CartView, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	view := cartView(sess)
	return &view, nil
}

func (s *Service) SetCustomer(_ context.Context, sessionID, customer string) (*domain.CartView, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if customer == "" {
		return nil, ErrMissingCustomer
	}
	sess.rec.SetCustomer(customer)
	view := cartView(sess)
	return &view, nil
}

func (s *Service) SetLineQuantity(ctx context.Context, sessionID, lineID string, quantity decimal.Decimal) (domain.ScanOutcome, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return domain.ScanOutcome{}, err
	}
	return sess.rec.SetLineQuantity(ctx, lineID, quantity), nil
}

func (s *Service) RemoveLine(ctx context.Context, sessionID, lineID string) (domain.ScanOutcome, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return domain.ScanOutcome{}, err
	}
	return sess.rec.RemoveLine(ctx, lineID), nil
}

func (s *Service) SetWarehouseContext(_ context.Context, sessionID, warehouse string) (*domain.CartView, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if warehouse == "" {
		sess.rec.ClearWarehouseContext()
	} else {
		sess.rec.SetWarehouseContext(warehouse)
	}
	view := cartView(sess)
	return &view, nil
}

// RefreshAvailability re-fetches the snapshot through the session's gate,
// the only way a cached position gets replaced.
func (s *Service) RefreshAvailability(ctx context.Context, sessionID, itemCode, warehouse string) (*domain.AvailabilitySnapshot, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if warehouse == "" {
		warehouse = s.defaultWarehouse
	}
	snap, err := sess.rec.RefreshAvailability(ctx, itemCode, warehouse)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// CloseSession drops the session; a pending prompt is cancelled first so
// the parked scan goroutine can finish.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	pending := sess.pending
	sess.mu.Unlock()
	if pending != nil {
		select {
		case sess.prompter.replies <- promptReply{cancel: true}:
			<-pending.done
		case <-ctx.Done():
			return ctx.Err()
		}
		sess.mu.Lock()
		sess.pending = nil
		sess.mu.Unlock()
	}

	if closer, ok := s.writer.(cartCloser); ok {
		if err := closer.CloseCart(ctx, sessionID); err != nil {
			log.Printf("[service] WARN: close cart %s: %v", sessionID, err)
		}
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *Service) ListItems(ctx context.Context, searchTerm string, limit int) ([]domain.Item, error) {
	return s.repo.ListItems(ctx, searchTerm, limit)
}

func cartView(sess *session) domain.CartView {
	order := sess.rec.Order()
	lines := make([]domain.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, *line)
	}
	return domain.CartView{
		SessionID:            order.ID,
		Customer:             order.Customer,
		LastScannedWarehouse: order.LastScannedWarehouse,
		Lines:                lines,
	}
}
