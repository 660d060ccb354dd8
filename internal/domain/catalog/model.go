package catalog

import (
	"time"

	"github.com/google/uuid"
)

// SpecimenType maps to the specimen_type table. A specimen type names a kind
// of collectable sample (serum, plasma, urine).
type SpecimenType struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TestType maps to the test_type table. A test type is an orderable catalog
// entry (CBC, Lipid Panel) that owns a set of result parameters.
type TestType struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Category    *string   `db:"category" json:"category,omitempty"`
	Price       *float64  `db:"price" json:"price,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Instrument maps to the instrument table. Results are always captured
// against a registered analyzer.
type Instrument struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	SerialNo  *string   `db:"serial_no" json:"serial_no,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SpecimenTypeAssignment maps to the test_type_specimen_type junction table.
// Specimen acceptance consults this relation: a specimen may only be accepted
// for a test type it is assigned to.
type SpecimenTypeAssignment struct {
	TestTypeID     uuid.UUID `db:"test_type_id" json:"test_type_id"`
	SpecimenTypeID uuid.UUID `db:"specimen_type_id" json:"specimen_type_id"`
}
