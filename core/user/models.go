package user

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/eduprohq/edupro/core"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type (
	// User is the public profile stored at users/{uid}. Balance is mutated
	// only through wallet transactions, never by profile edits.
	User struct {
		UID        string `json:"uid"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		Role       string `json:"role"`
		Balance    int64  `json:"balance"`
		ProfilePic string `json:"profilePic,omitempty"`
		Phone      string `json:"phone,omitempty"`
		CreatedAt  int64  `json:"createdAt"`
	}

	// Credentials live at auth/{uid}, apart from the profile, so profile
	// reads can never leak the password hash.
	Credentials struct {
		UID          string `json:"uid"`
		Email        string `json:"email"`
		PasswordHash []byte `json:"passwordHash"`
	}
)

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (c *Credentials) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.PasswordHash = hash
	return nil
}

func (c *Credentials) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(pwd))
}

// NewUser contains information needed to sign up a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return svc.validateStruct(nu)
}

// UpdateProfile defines what a user may change on their own profile.
type UpdateProfile struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	ProfilePic string `json:"profilePic" validate:"omitempty,url"`
}

func (up *UpdateProfile) Validate(svc *Service) error {
	up.Name = core.CleanString(up.Name)
	up.Phone = core.CleanString(up.Phone)
	return svc.validateStruct(up)
}

// Login is the sign-in request payload.
type Login struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

func (l *Login) Validate(svc *Service) error {
	l.Email = core.CleanString(l.Email, true /* lower */)
	return svc.validateStruct(l)
}

type QueryFilter struct {
	Search string `query:"search"`
	Role   string `query:"role"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
