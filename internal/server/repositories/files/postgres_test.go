package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
)

var fileColumns = []string{"id", "display_name", "blob_locator", "owner_id", "key", "iv", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestPostgresCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+files\s*\(id, display_name, blob_locator, owner_id, key, iv, created_at\)`).
		WithArgs("id-1", "a.csv.enc", "files/x", "u1", "wk", "iv", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Create(context.Background(), &models.FileRecord{
		ID: "id-1", DisplayName: "a.csv.enc", BlobLocator: "files/x", OwnerID: "u1", Key: "wk", IV: "iv", CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "id-1" {
		t.Fatalf("want id-1, got %s", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCreate_AssignsIDAndTime(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO files`).
		WithArgs(sqlmock.AnyArg(), "b.csv.enc", "files/y", "u1", "wk", "iv", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &models.FileRecord{DisplayName: "b.csv.enc", BlobLocator: "files/y", OwnerID: "u1", Key: "wk", IV: "iv"}
	id, err := repo.Create(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("id and created_at must be assigned: %+v", rec)
	}
}

func TestPostgresCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO files`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.FileRecord{ID: "x"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPostgresCreate_RowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO files`).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))
	_, err := repo.Create(context.Background(), &models.FileRecord{ID: "x"})
	if err == nil || !regexp.MustCompile(`rows affected error: .*rows-err`).MatchString(err.Error()) {
		t.Fatalf("expected rows affected error, got %v", err)
	}

	mock.ExpectExec(`INSERT INTO files`).WillReturnResult(sqlmock.NewResult(0, 2))
	_, err = repo.Create(context.Background(), &models.FileRecord{ID: "y"})
	if err == nil || !regexp.MustCompile(`unexpected rows affected: 2`).MatchString(err.Error()) {
		t.Fatalf("expected unexpected rows affected error, got %v", err)
	}
}

func TestPostgresGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, display_name, blob_locator, owner_id, key, iv, created_at FROM files WHERE id=\$1`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows(fileColumns).AddRow("id-1", "a.csv.enc", "files/x", "u1", "wk", "iv", created))

	got, err := repo.Get(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DisplayName != "a.csv.enc" || got.Key != "wk" || !got.CreatedAt.Equal(created) {
		t.Fatalf("bad row: %+v", got)
	}
}

func TestPostgresGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM files WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestPostgresGet_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM files WHERE id=\$1`).WillReturnError(errors.New("conn reset"))

	_, err := repo.Get(context.Background(), "x")
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want generic error, got %v", err)
	}
}

func TestPostgresListOlderThan(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(fileColumns).
		AddRow("e1", "a.enc", "files/a", "u1", "k1", "iv1", cutoff.Add(-48*time.Hour)).
		AddRow("e2", "b.enc", "files/b", "u2", "k2", "iv2", cutoff.Add(-time.Hour))

	mock.ExpectQuery(`FROM files WHERE created_at < \$1 ORDER BY created_at, id`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	got, err := repo.ListOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e1" || got[1].OwnerID != "u2" {
		t.Fatalf("bad rows: %+v", got)
	}
}

func TestPostgresListAll_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM files ORDER BY created_at, id`).WillReturnError(errors.New("boom"))
	if _, err := repo.ListAll(context.Background()); err == nil {
		t.Fatal("expected query error")
	}

	rows := sqlmock.NewRows([]string{"id"}).AddRow("only-one-column")
	mock.ExpectQuery(`FROM files ORDER BY created_at, id`).WillReturnRows(rows)
	if _, err := repo.ListAll(context.Background()); err == nil {
		t.Fatal("expected scan error")
	}

	rows = sqlmock.NewRows(fileColumns).
		AddRow("e1", "a.enc", "files/a", "u1", "k1", "iv1", time.Now()).
		RowError(0, errors.New("row-err"))
	mock.ExpectQuery(`FROM files ORDER BY created_at, id`).WillReturnRows(rows)
	if _, err := repo.ListAll(context.Background()); err == nil {
		t.Fatal("expected rows error")
	}
}

func TestPostgresDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `DELETE FROM files WHERE id=\$1`

	mock.ExpectExec(q).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "e1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(q).WithArgs("e2").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), "e2"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}

	mock.ExpectExec(q).WithArgs("e3").WillReturnError(errors.New("db down"))
	if err := repo.Delete(context.Background(), "e3"); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectExec(q).WithArgs("e4").WillReturnResult(sqlmock.NewErrorResult(errors.New("ra")))
	if err := repo.Delete(context.Background(), "e4"); err == nil {
		t.Fatal("expected rows affected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
