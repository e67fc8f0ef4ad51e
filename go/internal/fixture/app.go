package fixture

import (
	"context"
	"fmt"

	"github.com/jstats/matchlens/go/internal/models"
)

// FixturesRepository defines what the app layer needs from the repository.
type FixturesRepository interface {
	Get(ctx context.Context, key string) (*models.Fixture, error)
	List(ctx context.Context, competition string, limit int) ([]models.Fixture, error)
	ListEvents(ctx context.Context, key string) ([]models.ChangeEvent, error)
	Ping(ctx context.Context) error
}

// App serves the fixture read path. Reads go straight to the store and
// bypass the write pipeline entirely.
type App struct {
	repo FixturesRepository
}

func NewApp(repo FixturesRepository) *App {
	return &App{
		repo: repo,
	}
}

// GetFixture retrieves a fixture by external key.
func (a *App) GetFixture(ctx context.Context, key string) (*models.Fixture, error) {
	if key == "" {
		return nil, fmt.Errorf("external key is required")
	}
	return a.repo.Get(ctx, key)
}

// ListFixtures retrieves fixtures for one competition, or all when the
// competition code is empty.
func (a *App) ListFixtures(ctx context.Context, competition string, limit int) ([]models.Fixture, error) {
	return a.repo.List(ctx, competition, limit)
}

// GetFixtureEvents returns the fixture's change event history in version
// order.
func (a *App) GetFixtureEvents(ctx context.Context, key string) ([]models.ChangeEvent, error) {
	if key == "" {
		return nil, fmt.Errorf("external key is required")
	}
	return a.repo.ListEvents(ctx, key)
}

// Ready reports whether the store is reachable.
func (a *App) Ready(ctx context.Context) error {
	return a.repo.Ping(ctx)
}
