package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v4"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ LayoutUseCase = (*layoutUC)(nil)

// LayoutUseCase stores each user's widget order per dashboard surface.
// A surface's default list is also the set of widgets it may show.
type LayoutUseCase interface {
	Get(ctx context.Context, userID int64, surface string) (*model.WidgetLayout, error)
	Save(ctx context.Context, userID int64, surface string, widgets []string) (*model.WidgetLayout, error)
	List(ctx context.Context, userID int64) ([]*model.WidgetLayout, error)
	Surfaces() []string
}

type layoutUC struct {
	repo     repository.WidgetLayoutRepository
	tm       repository.TransactionManager
	defaults map[string][]string
	clock    Clock
}

func NewLayoutUseCase(repo repository.WidgetLayoutRepository, tm repository.TransactionManager, defaults map[string][]string, clock Clock) *layoutUC {
	return &layoutUC{repo: repo, tm: tm, defaults: defaults, clock: clock}
}

func (uc *layoutUC) Surfaces() []string {
	out := make([]string, 0, len(uc.defaults))
	for s := range uc.defaults {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (uc *layoutUC) defaultLayout(userID int64, surface string) *model.WidgetLayout {
	return &model.WidgetLayout{
		UserID:  userID,
		Surface: surface,
		Widgets: append([]string(nil), uc.defaults[surface]...),
	}
}

func (uc *layoutUC) Get(ctx context.Context, userID int64, surface string) (*model.WidgetLayout, error) {
	if _, ok := uc.defaults[surface]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownWidgetSurface, surface)
	}
	l, err := uc.repo.Find(ctx, nil, userID, surface)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.defaultLayout(userID, surface), nil
	}
	return l, err
}

// Save keeps the first occurrence of each widget id. Saving an unchanged layout does not touch updated_at.
func (uc *layoutUC) Save(ctx context.Context, userID int64, surface string, widgets []string) (*model.WidgetLayout, error) {
	allowed, ok := uc.defaults[surface]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownWidgetSurface, surface)
	}
	clean, err := normalizeWidgets(widgets, allowed)
	if err != nil {
		return nil, err
	}

	var saved *model.WidgetLayout
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := uc.repo.Find(ctx, tx, userID, surface)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if cur != nil && equalStrings(cur.Widgets, clean) {
			saved = cur
			return nil
		}
		next := &model.WidgetLayout{UserID: userID, Surface: surface, Widgets: clean, UpdatedAt: uc.clock.now().UTC()}
		if err := uc.repo.Upsert(ctx, tx, next); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (uc *layoutUC) List(ctx context.Context, userID int64) ([]*model.WidgetLayout, error) {
	stored, err := uc.repo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	bySurface := map[string]*model.WidgetLayout{}
	for _, l := range stored {
		bySurface[l.Surface] = l
	}
	out := make([]*model.WidgetLayout, 0, len(uc.defaults))
	for _, s := range uc.Surfaces() {
		if l, ok := bySurface[s]; ok {
			out = append(out, l)
			continue
		}
		out = append(out, uc.defaultLayout(userID, s))
	}
	return out, nil
}

func normalizeWidgets(widgets, allowed []string) ([]string, error) {
	known := make(map[string]struct{}, len(allowed))
	for _, w := range allowed {
		known[w] = struct{}{}
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(widgets))
	for _, w := range widgets {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, ok := known[w]; !ok {
			return nil, fmt.Errorf("%w: unknown widget %q", domain.ErrInvalidArgument, w)
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
