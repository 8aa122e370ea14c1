package postgres

import "time"

// TableRecord is the header row of one stored lookup table run.
type TableRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement;column:id"`
	RunID      string    `gorm:"column:run_id;not null;uniqueIndex"`
	Name       string    `gorm:"column:name;not null;index"`
	Increments int       `gorm:"column:increments;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`

	Cells []CellRecord `gorm:"foreignKey:TableID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for TableRecord
func (TableRecord) TableName() string {
	return "lookup_tables"
}

// CellRecord is one (increment, unit) entry of a stored table.
type CellRecord struct {
	TableID   uint    `gorm:"primaryKey;autoIncrement:false;column:table_id"`
	Increment int     `gorm:"primaryKey;autoIncrement:false;column:increment"`
	UnitID    int     `gorm:"primaryKey;autoIncrement:false;column:unit_id"`
	Area      float64 `gorm:"column:area;not null"`
	Volume    float64 `gorm:"column:volume;not null"`
}

// TableName specifies the table name for CellRecord
func (CellRecord) TableName() string {
	return "lookup_cells"
}
