package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"LottoChain/internal/config"
	xerrors "LottoChain/internal/errors"

	"github.com/go-sql-driver/mysql"
)

// 交易类型。
const (
	KindTicket = "ticket"
	KindClaim  = "claim"
)

// 交易回执状态。
const (
	StatusSuccess  = "success"
	StatusReverted = "reverted"
)

// memoryLimit 是本地日志在内存中保留的记录数。
const memoryLimit = 512

// TxRecord 表示一笔已上链的购票或领奖交易。
type TxRecord struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Account     string `json:"account"`
	TxHash      string `json:"tx_hash"`
	Numbers     []int  `json:"numbers,omitempty"`
	ValueWei    string `json:"value_wei"`
	BlockNumber uint64 `json:"block_number"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
}

// ErrDuplicateTx 表示同一交易哈希已经记录过。
var ErrDuplicateTx = xerrors.New(xerrors.CodeConflict, "交易已记录")

// HistoryRepository 抽象交易历史的持久化接口。
type HistoryRepository interface {
	Save(ctx context.Context, record TxRecord) error
	// ListLatest 返回最近的记录，account 为空时不过滤账户。
	ListLatest(ctx context.Context, account string, limit int) ([]TxRecord, error)
	Close() error
}

// NewHistoryRepository 根据配置选择存储实现。
func NewHistoryRepository(ctx context.Context, cfg config.HistoryStoreConfig, dataDir string) (HistoryRepository, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryHistoryRepository(dataDir)
	case "mysql":
		return NewSQLHistoryRepository(ctx, ConfigFrom(cfg))
	default:
		return nil, fmt.Errorf("未知的 history 存储驱动: %s", cfg.Driver)
	}
}

func validateRecord(record TxRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录 ID 不能为空")
	}
	if strings.TrimSpace(record.TxHash) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "交易哈希不能为空")
	}
	if record.Kind != KindTicket && record.Kind != KindClaim {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的交易类型: %s", record.Kind))
	}
	return nil
}

// MemoryHistoryRepository 使用本地 JSON 日志保存交易记录，方便本地开发。
type MemoryHistoryRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []TxRecord
	hashes   map[string]struct{}
}

// NewMemoryHistoryRepository 在 dataDir 下创建或恢复 history.log。
func NewMemoryHistoryRepository(dataDir string) (*MemoryHistoryRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	repo := &MemoryHistoryRepository{
		dataFile: filepath.Join(dataDir, "history.log"),
		hashes:   make(map[string]struct{}),
	}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录交易。
func (m *MemoryHistoryRepository) Save(_ context.Context, record TxRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.hashes[record.TxHash]; ok {
		return ErrDuplicateTx
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化交易记录失败: %w", err)
	}
	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "打开交易日志失败")
	}
	defer file.Close()
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入交易日志失败")
	}

	m.hashes[record.TxHash] = struct{}{}
	m.records = append([]TxRecord{record}, m.records...)
	sortNewestFirst(m.records)
	if len(m.records) > memoryLimit {
		m.records = m.records[:memoryLimit]
	}
	return nil
}

// ListLatest 按 created_at 倒序返回最近的记录。
func (m *MemoryHistoryRepository) ListLatest(_ context.Context, account string, limit int) ([]TxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = len(m.records)
	}
	results := make([]TxRecord, 0, limit)
	for _, record := range m.records {
		if len(results) == limit {
			break
		}
		if account != "" && !strings.EqualFold(record.Account, account) {
			continue
		}
		results = append(results, record)
	}
	return results, nil
}

// Close 对本地日志无需额外操作。
func (m *MemoryHistoryRepository) Close() error { return nil }

func (m *MemoryHistoryRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取交易日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []TxRecord
	for scanner.Scan() {
		var record TxRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		m.hashes[record.TxHash] = struct{}{}
		restored = append([]TxRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析交易日志失败: %w", err)
	}
	sortNewestFirst(restored)
	if len(restored) > memoryLimit {
		restored = restored[:memoryLimit]
	}
	m.records = restored
	return nil
}

// sortNewestFirst 与 SQL 查询的 ORDER BY created_at DESC, id DESC 保持一致。
func sortNewestFirst(records []TxRecord) {
	slices.SortStableFunc(records, func(a, b TxRecord) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt > b.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// SQLHistoryRepository 使用 MySQL 保存交易记录。
type SQLHistoryRepository struct {
	db *sql.DB
}

// NewSQLHistoryRepository 创建连接池并执行迁移。
func NewSQLHistoryRepository(ctx context.Context, cfg Config) (*SQLHistoryRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化交易历史存储失败")
	}
	if err := newMigrator(db).run(ctx); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行数据库迁移失败")
	}
	return &SQLHistoryRepository{db: db}, nil
}

const insertTxSQL = `INSERT INTO tx_history (id, kind, account, tx_hash, numbers, value_wei, block_number, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectTxColumns = `SELECT id, kind, account, tx_hash, numbers, value_wei, block_number, status, created_at FROM tx_history`

// Save 将交易记录写入 MySQL。
func (s *SQLHistoryRepository) Save(ctx context.Context, record TxRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, insertTxSQL,
		record.ID,
		record.Kind,
		record.Account,
		record.TxHash,
		encodeNumbers(record.Numbers),
		record.ValueWei,
		record.BlockNumber,
		record.Status,
		record.CreatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrDuplicateTx
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入交易记录失败")
	}
	return nil
}

// ListLatest 查询最近的交易记录。
func (s *SQLHistoryRepository) ListLatest(ctx context.Context, account string, limit int) ([]TxRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if account == "" {
		rows, err = s.db.QueryContext(ctx, selectTxColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, selectTxColumns+` WHERE account = ? ORDER BY created_at DESC, id DESC LIMIT ?`, account, limit)
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询交易记录失败")
	}
	defer rows.Close()

	records := make([]TxRecord, 0, limit)
	for rows.Next() {
		var (
			record  TxRecord
			numbers string
		)
		if err := rows.Scan(&record.ID, &record.Kind, &record.Account, &record.TxHash, &numbers,
			&record.ValueWei, &record.BlockNumber, &record.Status, &record.CreatedAt); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析交易记录失败")
		}
		if record.Numbers, err = decodeNumbers(numbers); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析票号失败")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历交易记录失败")
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLHistoryRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func encodeNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func decodeNumbers(value string) ([]int, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, err
		}
		out[i] = int(n)
	}
	return out, nil
}
