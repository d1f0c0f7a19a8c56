package models

// Role — роль аккаунта в системе.
//
// Набор ролей закрытый; значение участвует только в проверках доступа,
// порядок между ролями не задаёт иерархию.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Valid сообщает, принадлежит ли значение закрытому набору ролей.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}

	return false
}

// String возвращает строковое представление роли.
func (r Role) String() string {
	return string(r)
}
