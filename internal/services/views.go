package services

import (
	"context"
	"errors"

	"finboard/internal/storage"
	"finboard/internal/view"
)

var ErrNoViewStore = errors.New("saved views are not configured")

func (d *Dashboard) ListViews(ctx context.Context, userID string) ([]storage.SavedView, error) {
	if d.views == nil {
		return []storage.SavedView{}, nil
	}
	return d.views.ListViews(ctx, userID)
}

// SaveView stores the persisted part of state under name.
func (d *Dashboard) SaveView(ctx context.Context, userID, name string, state view.TableState, isDefault bool) (*storage.SavedView, error) {
	if d.views == nil {
		return nil, ErrNoViewStore
	}
	return d.views.SaveView(ctx, storage.SavedView{
		UserID:    userID,
		Name:      name,
		State:     state,
		IsDefault: isDefault,
	})
}

// ApplyView returns current with the saved view's filters, range and
// ordering applied. Page and selection reset.
func (d *Dashboard) ApplyView(ctx context.Context, userID, viewID string, current view.TableState) (view.TableState, error) {
	if d.views == nil {
		return current, ErrNoViewStore
	}
	v, err := d.views.GetView(ctx, userID, viewID)
	if err != nil {
		return current, err
	}
	next := current.Clone()
	next.Apply(v.State)
	return next, nil
}

func (d *Dashboard) SetDefaultView(ctx context.Context, userID, viewID string) error {
	if d.views == nil {
		return ErrNoViewStore
	}
	return d.views.SetDefault(ctx, userID, viewID)
}

func (d *Dashboard) DeleteView(ctx context.Context, userID, viewID string) error {
	if d.views == nil {
		return ErrNoViewStore
	}
	return d.views.DeleteView(ctx, userID, viewID)
}

// InitialState is the table state for an account the user has not opened
// in this session: the default saved view if there is one.
func (d *Dashboard) InitialState(ctx context.Context, userID string) view.TableState {
	state := view.DefaultTableState()
	if d.views == nil {
		return state
	}
	v, err := d.views.DefaultView(ctx, userID)
	if err != nil {
		d.logger.WarnContext(ctx, "Failed to load default view", "error", err)
		return state
	}
	if v != nil {
		state.Apply(v.State)
	}
	return state
}
