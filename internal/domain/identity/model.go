package identity

import "time"

// Staff roles.
const (
	RoleDoctor    = "doctor"
	RoleNurse     = "nurse"
	RoleRegistrar = "registrar"
	RoleAdmin     = "admin"
)

var validRoles = map[string]bool{
	RoleDoctor: true, RoleNurse: true, RoleRegistrar: true, RoleAdmin: true,
}

// Patient maps to the patient table. Locked is the permanent-lock flag: it
// is set once the patient reaches a terminal clinical status and is never
// cleared; every edit path checks it.
type Patient struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	Locked    bool      `db:"locked" json:"locked"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ContactAddress returns the preferred reminder address, email first.
func (p *Patient) ContactAddress() *string {
	if p.Email != nil && *p.Email != "" {
		return p.Email
	}
	if p.Phone != nil && *p.Phone != "" {
		return p.Phone
	}
	return nil
}

// Staff maps to the staff table.
type Staff struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Role       string    `db:"role" json:"role"`
	Department *string   `db:"department" json:"department,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
