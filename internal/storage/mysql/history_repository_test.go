package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	xerrors "LottoChain/internal/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func sampleRecord(id, hash string, createdAt int64) TxRecord {
	return TxRecord{
		ID:          id,
		Kind:        KindTicket,
		Account:     "0x00000000000000000000000000000000000A11cE",
		TxHash:      hash,
		Numbers:     []int{1, 2, 3, 4, 5, 6, 47},
		ValueWei:    "10000000000000000",
		BlockNumber: 12,
		Status:      StatusSuccess,
		CreatedAt:   createdAt,
	}
}

func TestMemoryHistoryRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewMemoryHistoryRepository(dir)
	if err != nil {
		t.Fatalf("create repo: %v", err)
	}
	ctx := context.Background()

	if err := repo.Save(ctx, sampleRecord("a", "0x01", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	claim := sampleRecord("b", "0x02", 2)
	claim.Kind = KindClaim
	claim.Numbers = nil
	claim.Account = "0x0000000000000000000000000000000000000b0b"
	if err := repo.Save(ctx, claim); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, sampleRecord("c", "0x01", 3)); !errors.Is(err, ErrDuplicateTx) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := repo.Save(ctx, TxRecord{ID: "d", TxHash: "0x03", Kind: "bet"}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	all, err := repo.ListLatest(ctx, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "b" {
		t.Fatalf("unexpected order %+v", all)
	}
	mine, err := repo.ListLatest(ctx, "0x00000000000000000000000000000000000a11ce", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "a" {
		t.Fatalf("account filter failed: %+v", mine)
	}

	reopened, err := NewMemoryHistoryRepository(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	restored, _ := reopened.ListLatest(ctx, "", 0)
	if len(restored) != 2 || restored[0].ID != "b" || len(restored[1].Numbers) != 7 {
		t.Fatalf("records not restored from disk: %+v", restored)
	}
	if err := reopened.Save(ctx, sampleRecord("e", "0x02", 4)); !errors.Is(err, ErrDuplicateTx) {
		t.Fatal("restored repository must remember hashes")
	}
}

func TestMemoryHistoryOrdersByCreatedAt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var lines []string
	for _, rec := range []TxRecord{
		sampleRecord("a", "0x0a", 30),
		sampleRecord("b", "0x0b", 10),
		sampleRecord("c", "0x0c", 30),
		sampleRecord("d", "0x0d", 20),
	} {
		encoded, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		lines = append(lines, string(encoded))
	}
	if err := os.WriteFile(filepath.Join(dir, "history.log"), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	repo, err := NewMemoryHistoryRepository(dir)
	if err != nil {
		t.Fatalf("create repo: %v", err)
	}
	ctx := context.Background()
	if err := repo.Save(ctx, sampleRecord("e", "0x0e", 15)); err != nil {
		t.Fatalf("save: %v", err)
	}

	list, err := repo.ListLatest(ctx, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, rec := range list {
		ids = append(ids, rec.ID)
	}
	if got := strings.Join(ids, ","); got != "c,a,d,e,b" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestHistoryNumbersEncodeAsIntegers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewMemoryHistoryRepository(dir)
	if err != nil {
		t.Fatalf("create repo: %v", err)
	}
	if err := repo.Save(context.Background(), sampleRecord("a", "0x01", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dir, "history.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), `"numbers":[1,2,3,4,5,6,47]`) {
		t.Fatalf("numbers must be a JSON integer array: %s", content)
	}
}

func TestSQLHistoryRepositorySave(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	record := sampleRecord("a", "0x01", 100)
	mock.ExpectExec(regexp.QuoteMeta(insertTxSQL)).
		WithArgs("a", KindTicket, record.Account, "0x01", "1,2,3,4,5,6,47", "10000000000000000", uint64(12), StatusSuccess, int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertTxSQL)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectExec(regexp.QuoteMeta(insertTxSQL)).
		WillReturnError(errors.New("connection reset"))

	repo := &SQLHistoryRepository{db: db}
	ctx := context.Background()
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, record); !errors.Is(err, ErrDuplicateTx) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := repo.Save(ctx, record); xerrors.CodeOf(err) != xerrors.CodeStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLHistoryRepositoryListLatest(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	columns := []string{"id", "kind", "account", "tx_hash", "numbers", "value_wei", "block_number", "status", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta(selectTxColumns + ` WHERE account = ? ORDER BY created_at DESC, id DESC LIMIT ?`)).
		WithArgs("0xabc", 5).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("b", KindClaim, "0xabc", "0x02", "", "0", uint64(13), StatusSuccess, int64(20)).
			AddRow("a", KindTicket, "0xabc", "0x01", "1,2,3,4,5,6,47", "10000000000000000", uint64(12), StatusSuccess, int64(10)))
	mock.ExpectQuery(regexp.QuoteMeta(selectTxColumns + ` ORDER BY created_at DESC, id DESC LIMIT ?`)).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(columns))

	repo := &SQLHistoryRepository{db: db}
	list, err := repo.ListLatest(context.Background(), "0xabc", 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[0].Numbers != nil {
		t.Fatalf("unexpected list %+v", list)
	}
	if len(list[1].Numbers) != 7 || list[1].Numbers[6] != 47 {
		t.Fatalf("numbers not decoded: %v", list[1].Numbers)
	}

	empty, err := repo.ListLatest(context.Background(), "", 0)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v %v", empty, err)
	}
	if encoded, _ := json.Marshal(empty); string(encoded) != "[]" {
		t.Fatalf("empty history must encode as [], got %s", encoded)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMigratorAppliesPendingFiles(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	files := fstest.MapFS{
		"0001_init.sql":  {Data: []byte("-- first\nCREATE TABLE a (id INT);\nCREATE TABLE b (id INT);\n")},
		"0002_extra.sql": {Data: []byte("CREATE TABLE c (id INT);")},
	}
	m := &migrator{db: db, files: files, now: func() time.Time { return time.Unix(1700000000, 0) }}
	loaded, err := m.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || len(loaded[0].statements) != 2 {
		t.Fatalf("unexpected migrations %+v", loaded)
	}

	mock.ExpectExec(regexp.QuoteMeta(createMigrationsTable)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version, checksum FROM schema_migrations`)).
		WillReturnRows(sqlmock.NewRows([]string{"version", "checksum"}).AddRow("0001", loaded[0].checksum))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE c (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations (version, checksum, applied_at) VALUES (?, ?, ?)`)).
		WithArgs("0002", loaded[1].checksum, int64(1700000000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := m.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMigratorRejectsModifiedFile(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	m := &migrator{db: db, files: fstest.MapFS{"0001_init.sql": {Data: []byte("CREATE TABLE a (id INT);")}}, now: time.Now}
	mock.ExpectExec(regexp.QuoteMeta(createMigrationsTable)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version, checksum FROM schema_migrations`)).
		WillReturnRows(sqlmock.NewRows([]string{"version", "checksum"}).AddRow("0001", "stale"))

	if err := m.run(context.Background()); err == nil {
		t.Fatal("expected checksum mismatch")
	}
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	t.Parallel()

	loaded, err := newMigrator(nil).load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) == 0 || loaded[0].version != "0001" {
		t.Fatalf("unexpected embedded migrations %+v", loaded)
	}
}
