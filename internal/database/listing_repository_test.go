package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/sss97133/nuke-sub008/internal/database"
	"github.com/sss97133/nuke-sub008/internal/domain"
)

var listingColumns = []string{
	"id", "platform", "external_id", "url", "state", "current_bid", "bid_count",
	"watcher_count", "view_count", "end_time", "final_price", "vin", "year",
	"make", "model", "last_synced_at", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func listingRow(id string, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(listingColumns).AddRow(
		id, "bring_a_trailer", "1967-mustang",
		"https://bringatrailer.com/listing/1967-mustang/", "active",
		nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
		createdAt, createdAt,
	)
}

func TestListingRepository_Create_ReturnsExistingOnConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewListingRepository(db)
	ctx := context.Background()

	existingID := "listing-already-there"
	createdAt := time.Now().Add(-48 * time.Hour)

	// ON CONFLICT DO NOTHING means zero rows affected for a duplicate.
	mock.ExpectExec("INSERT INTO listings").
		WithArgs(
			"listing-new-attempt",
			"bring_a_trailer",
			"1967-mustang",
			"https://bringatrailer.com/listing/1967-mustang/",
			"active",
		).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT (.+) FROM listings WHERE platform = \\$1 AND external_id = \\$2").
		WithArgs("bring_a_trailer", "1967-mustang").
		WillReturnRows(listingRow(existingID, createdAt))

	listing, err := repo.Create(ctx, &domain.ListingRecord{
		ID:         "listing-new-attempt",
		Platform:   "bring_a_trailer",
		ExternalID: "1967-mustang",
		URL:        "https://bringatrailer.com/listing/1967-mustang/",
		State:      domain.ListingStateActive,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if listing.ID != existingID {
		t.Errorf("expected the stored row back, got id %s", listing.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListingRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewListingRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM listings WHERE id = \\$1").
		WithArgs("missing-listing").
		WillReturnRows(sqlmock.NewRows(listingColumns))

	_, err := repo.GetByID(ctx, "missing-listing")
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListingRepository_Update_GuardHit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewListingRepository(db)
	ctx := context.Background()

	readAt := time.Now().Add(-time.Minute)
	bid := int64(36_000)

	mock.ExpectExec("UPDATE listings").
		WithArgs(
			"ending_soon", bid, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"listing-1", readAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(ctx, &domain.ListingRecord{
		ID:         "listing-1",
		State:      domain.ListingStateEndingSoon,
		CurrentBid: &bid,
	}, readAt)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListingRepository_Update_ConflictOnStaleRead(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewListingRepository(db)
	ctx := context.Background()

	// The updated_at guard misses when a concurrent writer got there first.
	mock.ExpectExec("UPDATE listings").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(ctx, &domain.ListingRecord{
		ID:    "listing-1",
		State: domain.ListingStateActive,
	}, time.Now().Add(-time.Minute))
	if !errors.Is(err, database.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListingRepository_List_EmptyIsNotNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewListingRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM listings").
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(listingColumns))

	listings, err := repo.List(ctx, 0, -5)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if listings == nil {
		t.Error("expected an empty slice, got nil")
	}
	if len(listings) != 0 {
		t.Errorf("expected no listings, got %d", len(listings))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
