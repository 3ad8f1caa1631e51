package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRow is the physical row behind every gorm-backed table.
type DocumentRow struct {
	Kind      string `gorm:"primaryKey;size:64"`
	DocID     int64  `gorm:"primaryKey;autoIncrement:false"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName implements gorm's tabler interface.
func (DocumentRow) TableName() string {
	return "documents"
}

// Gorm stores all logical tables in a single documents table keyed by
// (kind, doc_id), with the body serialized as JSON.
type Gorm struct {
	db     *gorm.DB
	mu     sync.Mutex
	tables map[string]*gormTable
}

// NewGorm returns a table set backed by db. Call Migrate before first use.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db, tables: make(map[string]*gormTable)}
}

// Migrate creates or updates the documents table.
func (g *Gorm) Migrate() error {
	return g.db.AutoMigrate(&DocumentRow{})
}

// Table returns the named table.
func (g *Gorm) Table(name string) Table {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tables[name]
	if !ok {
		t = &gormTable{db: g.db, name: name, lastID: -1}
		g.tables[name] = t
	}
	return t
}

type gormTable struct {
	db   *gorm.DB
	name string

	mu     sync.Mutex
	lastID int64
}

func (t *gormTable) Name() string { return t.name }

// nextID keeps a process-local high-water mark seeded from max(doc_id) so
// ids stay monotonic even after the newest document is deleted.
func (t *gormTable) nextID() (int64, error) {
	if t.lastID < 0 {
		var maxID int64
		if err := t.db.Model(&DocumentRow{}).
			Where("kind = ?", t.name).
			Select("COALESCE(MAX(doc_id), 0)").
			Scan(&maxID).Error; err != nil {
			return 0, fmt.Errorf("store: %s: next id: %w", t.name, err)
		}
		t.lastID = maxID
	}
	t.lastID++
	return t.lastID, nil
}

func (t *gormTable) Upsert(id int64, doc Document) (int64, error) {
	if id < 0 {
		return 0, fmt.Errorf("store: %s: negative id %d", t.name, id)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("store: %s: encode: %w", t.name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if id == 0 {
		return t.insert(string(body))
	}
	if t.lastID >= 0 && id > t.lastID {
		t.lastID = id
	}

	row := DocumentRow{Kind: t.name, DocID: id, Body: string(body)}
	err = t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("store: %s: upsert %d: %w", t.name, id, err)
	}
	return id, nil
}

const maxInsertAttempts = 8

// insert stores body under a fresh id. Another process sharing the database
// may claim the same id first; the insert then affects no row and the
// high-water mark is reseeded from the table.
func (t *gormTable) insert(body string) (int64, error) {
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		id, err := t.nextID()
		if err != nil {
			return 0, err
		}
		row := DocumentRow{Kind: t.name, DocID: id, Body: body}
		res := t.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "doc_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return 0, fmt.Errorf("store: %s: insert %d: %w", t.name, id, res.Error)
		}
		if res.RowsAffected == 1 {
			return id, nil
		}
		t.lastID = -1
	}
	return 0, fmt.Errorf("store: %s: insert: no free id after %d attempts", t.name, maxInsertAttempts)
}

func (t *gormTable) Get(id int64) (Document, bool, error) {
	var row DocumentRow
	err := t.db.Where("kind = ? AND doc_id = ?", t.name, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: %s: get %d: %w", t.name, id, err)
	}
	doc, err := decodeBody(row.Body)
	if err != nil {
		return nil, false, fmt.Errorf("store: %s/%d: %w", t.name, id, err)
	}
	return doc, true, nil
}

func (t *gormTable) Find(match Predicate) (Entry, bool, error) {
	for entry, err := range t.All() {
		if err != nil {
			return Entry{}, false, err
		}
		if match == nil || match(entry.Doc) {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

func (t *gormTable) Search(match Predicate) ([]Entry, error) {
	var out []Entry
	for entry, err := range t.All() {
		if err != nil {
			return nil, err
		}
		if match == nil || match(entry.Doc) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (t *gormTable) Delete(id int64) error {
	res := t.db.Where("kind = ? AND doc_id = ?", t.name, id).Delete(&DocumentRow{})
	if res.Error != nil {
		return fmt.Errorf("store: %s: delete %d: %w", t.name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s/%d: %w", t.name, id, ErrNotFound)
	}
	return nil
}

// All streams rows in id order through a cursor; each call opens a new one.
func (t *gormTable) All() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		rows, err := t.db.Model(&DocumentRow{}).
			Where("kind = ?", t.name).
			Order("doc_id").
			Rows()
		if err != nil {
			yield(Entry{}, fmt.Errorf("store: %s: scan: %w", t.name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row DocumentRow
			if err := t.db.ScanRows(rows, &row); err != nil {
				yield(Entry{}, fmt.Errorf("store: %s: scan: %w", t.name, err))
				return
			}
			doc, err := decodeBody(row.Body)
			if err != nil {
				if !yield(Entry{}, fmt.Errorf("store: %s/%d: %w", t.name, row.DocID, err)) {
					return
				}
				continue
			}
			if !yield(Entry{ID: row.DocID, Doc: doc}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, fmt.Errorf("store: %s: scan: %w", t.name, err))
		}
	}
}

func decodeBody(body string) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for k, v := range raw {
		raw[k] = Normalize(v)
	}
	return Document(raw), nil
}
