package user

import (
	"context"
	"encoding/json"
	"net/mail"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/storage/store"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrBadCredentials = errors.New("invalid email or password")
)

type Service struct {
	store    store.Store
	mailSvc  core.EmailService
	conf     *core.Config
	validate *validator.Validate
}

func NewService(st store.Store, mailSvc core.EmailService, conf *core.Config,
	validate *validator.Validate, translator ut.Translator) *Service {
	registerValidators(validate, translator)
	return &Service{
		store:    st,
		mailSvc:  mailSvc,
		conf:     conf,
		validate: validate,
	}
}

func (svc *Service) validateStruct(v interface{}) error {
	return svc.validate.Struct(v)
}

// Register signs up a new user. The very first registrant becomes the admin;
// the decision and the email uniqueness check both happen inside a single
// transaction on the users collection so concurrent signups cannot race.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc); err != nil {
		return User{}, err
	}

	creds := Credentials{UID: uuid.New().String(), Email: nu.Email}
	if err := creds.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr := User{
		UID:       creds.UID,
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      RoleUser,
		CreatedAt: core.NowMillis(),
	}

	err := svc.store.Transact(ctx, "users", func(cur json.RawMessage) (interface{}, error) {
		entries, err := store.DecodeMap(cur)
		if err != nil {
			return nil, err
		}
		for _, raw := range entries {
			var existing User
			if _, err = store.Decode(raw, &existing); err != nil {
				return nil, err
			}
			if existing.Email == usr.Email {
				return nil, core.NewValidationError(ErrEmailExists,
					core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
			}
		}
		if len(entries) == 0 {
			usr.Role = RoleAdmin
		}
		entries[usr.UID] = mustMarshal(usr)
		return entries, nil
	})
	if err != nil {
		return User{}, err
	}

	if err = svc.store.Set(ctx, store.JoinPath("auth", creds.UID), creds); err != nil {
		// profile without credentials is unusable; undo the signup
		_ = svc.store.Delete(ctx, store.JoinPath("users", creds.UID))
		return User{}, errors.Wrap(err, "storing credentials")
	}

	svc.sendWelcomeEmail(usr)
	return usr, nil
}

// Authenticate verifies the email/password pair and returns the profile.
func (svc *Service) Authenticate(ctx context.Context, login Login) (User, error) {
	if err := login.Validate(svc); err != nil {
		return User{}, err
	}

	raw, err := svc.store.Get(ctx, "auth")
	if err != nil {
		return User{}, err
	}
	entries, err := store.DecodeMap(raw)
	if err != nil {
		return User{}, err
	}

	var creds Credentials
	for _, entry := range entries {
		var c Credentials
		if _, err = store.Decode(entry, &c); err != nil {
			return User{}, err
		}
		if c.Email == login.Email {
			creds = c
			break
		}
	}
	if creds.UID == "" {
		return User{}, ErrBadCredentials
	}
	if err = creds.CheckPassword(login.Password); err != nil {
		return User{}, ErrBadCredentials
	}
	return svc.GetByUID(ctx, creds.UID)
}

func (svc *Service) GetByUID(ctx context.Context, uid string) (User, error) {
	raw, err := svc.store.Get(ctx, store.JoinPath("users", uid))
	if err != nil {
		return User{}, err
	}
	var usr User
	found, err := store.Decode(raw, &usr)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, ErrNotFound
	}
	return usr, nil
}

// QueryAll returns every profile, most recent signups first.
func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.Filter(ctx, QueryFilter{})
}

// Filter applies an AND of the available QueryFilter fields. Search does a
// case-insensitive match on name or email.
func (svc *Service) Filter(ctx context.Context, qf QueryFilter) ([]User, error) {
	qf.Clean()

	raw, err := svc.store.Get(ctx, "users")
	if err != nil {
		return nil, err
	}
	entries, err := store.DecodeMap(raw)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(entries))
	search := strings.ToLower(qf.Search)
	for _, entry := range entries {
		var usr User
		if _, err = store.Decode(entry, &usr); err != nil {
			return nil, err
		}
		if qf.Role != "" && usr.Role != qf.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			continue
		}
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt > users[j].CreatedAt })
	return users, nil
}

// Promote grants the admin role to the user with the given email.
func (svc *Service) Promote(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)

	users, err := svc.Filter(ctx, QueryFilter{})
	if err != nil {
		return User{}, err
	}
	var uid string
	for _, usr := range users {
		if usr.Email == email {
			uid = usr.UID
			break
		}
	}
	if uid == "" {
		return User{}, ErrNotFound
	}

	var promoted User
	err = svc.store.Transact(ctx, store.JoinPath("users", uid), func(cur json.RawMessage) (interface{}, error) {
		found, err := store.Decode(cur, &promoted)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotFound
		}
		promoted.Role = RoleAdmin
		return promoted, nil
	})
	if err != nil {
		return User{}, err
	}
	return promoted, nil
}

// UpdateProfile edits the user's own mutable fields. Balance and role are
// never touched here.
func (svc *Service) UpdateProfile(ctx context.Context, uid string, up UpdateProfile) (User, error) {
	if err := up.Validate(svc); err != nil {
		return User{}, err
	}

	var updated User
	err := svc.store.Transact(ctx, store.JoinPath("users", uid), func(cur json.RawMessage) (interface{}, error) {
		found, err := store.Decode(cur, &updated)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotFound
		}
		if up.Name != "" {
			updated.Name = up.Name
		}
		if up.Phone != "" {
			updated.Phone = up.Phone
		}
		if up.ProfilePic != "" {
			updated.ProfilePic = up.ProfilePic
		}
		return updated, nil
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

func (svc *Service) sendWelcomeEmail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Welcome to " + svc.conf.AppName,
		Body: "Hi " + usr.Name + ",\n\nYour " + svc.conf.AppName +
			" account is ready. Sign in at " + svc.conf.FrontendBaseURL + " to get started.",
	})
}

func mustMarshal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
