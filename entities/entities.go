// Package entities declares the application entities: the home page text and
// the OAuth2 users, clients and tokens.
package entities

import (
	"time"

	"github.com/nxtgo/nxt-orm/orm"
	"github.com/nxtgo/nxt-orm/query/executor"
)

// Home holds the text of the home page.
type Home struct {
	orm.Model
	Text string `json:"text"`
}

// OauthClient is an application allowed to request tokens.
type OauthClient struct {
	orm.Model
	Secret            string   `json:"-"`
	AllowedGrantTypes []string `json:"allowedGrantTypes"`
	Name              string   `json:"name"`
}

// OauthUser is a resource owner.
type OauthUser struct {
	orm.Model
	Username string   `json:"username"`
	Password string   `json:"-"`
	Roles    []string `json:"roles"`
	Status   bool     `json:"status"`
}

// OauthToken is an issued access token.
type OauthToken struct {
	orm.Model
	User         *OauthUser   `json:"user"`
	Token        string       `json:"token"`
	TokenExpires time.Time    `json:"tokenExpires"`
	Client       *OauthClient `json:"client"`
}

// OauthRefreshToken is an issued refresh token.
type OauthRefreshToken struct {
	orm.Model
	User                *OauthUser   `json:"user"`
	RefreshToken        string       `json:"refreshToken"`
	RefreshTokenExpires time.Time    `json:"refreshTokenExpires"`
	Client              *OauthClient `json:"client"`
}

// Register declares every entity on r.
func Register(r *orm.Registry) error {
	if err := orm.Register[Home](r, orm.EntityDescriptor{
		Table: "home",
		Fields: []orm.FieldDescriptor{
			orm.IDField(),
			{Field: "Text", Name: "text", Type: orm.Text},
		},
	}); err != nil {
		return err
	}

	if err := orm.Register[OauthClient](r, orm.EntityDescriptor{
		Table: "oauth_client",
		Fields: []orm.FieldDescriptor{
			orm.IDField(),
			{Field: "Secret", Name: "secret", Type: orm.Varchar, Length: 255},
			{Field: "AllowedGrantTypes", Name: "allowed_grant_types", Type: orm.JSON, Nullable: true},
			{Field: "Name", Name: "name", Type: orm.Varchar, Length: 255},
		},
	}); err != nil {
		return err
	}

	if err := orm.Register[OauthUser](r, orm.EntityDescriptor{
		Table: "oauth_user",
		Fields: []orm.FieldDescriptor{
			orm.IDField(),
			{Field: "Username", Name: "username", Type: orm.Varchar, Length: 100, Key: orm.Unique},
			{Field: "Password", Name: "password", Type: orm.Varchar, Length: 255},
			{Field: "Roles", Name: "roles", Type: orm.JSON, Nullable: true},
			{Field: "Status", Name: "status", Type: orm.Boolean, IsStatusFlag: true},
		},
	}); err != nil {
		return err
	}

	if err := orm.Register[OauthToken](r, orm.EntityDescriptor{
		Table: "oauth_token",
		Fields: []orm.FieldDescriptor{
			orm.IDField(),
			{Field: "User", Relation: orm.ManyToOne, Target: orm.Ref[OauthUser]()},
			{Field: "Token", Name: "token", Type: orm.Varchar, Length: 255},
			{Field: "TokenExpires", Name: "token_expires", Type: orm.DateTime},
			{Field: "Client", Relation: orm.ManyToOne, Target: orm.Ref[OauthClient]()},
		},
	}); err != nil {
		return err
	}

	return orm.Register[OauthRefreshToken](r, orm.EntityDescriptor{
		Table: "oauth_refresh_token",
		Fields: []orm.FieldDescriptor{
			orm.IDField(),
			{Field: "User", Relation: orm.ManyToOne, Target: orm.Ref[OauthUser]()},
			{Field: "RefreshToken", Name: "refresh_token", Type: orm.Varchar, Length: 255},
			{Field: "RefreshTokenExpires", Name: "refresh_token_expires", Type: orm.DateTime},
			{Field: "Client", Relation: orm.ManyToOne, Target: orm.Ref[OauthClient]()},
		},
	})
}

// NewRegistry returns a registry holding every entity.
func NewRegistry() (*orm.Registry, error) {
	r := orm.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Validator checks users before they are written: username and password must
// be non-empty and fit their columns.
func Validator() executor.Validator {
	return executor.ValidatorFunc(func(entity any) []executor.ValidationError {
		u, ok := entity.(*OauthUser)
		if !ok {
			return nil
		}
		var errs []executor.ValidationError
		errs = appendString(errs, "username", u.Username, 100)
		errs = appendString(errs, "password", u.Password, 255)
		return errs
	})
}

func appendString(errs []executor.ValidationError, field, value string, max int) []executor.ValidationError {
	switch {
	case value == "":
		return append(errs, executor.ValidationError{Field: field, Msg: "must not be empty"})
	case len(value) > max:
		return append(errs, executor.ValidationError{Field: field, Msg: "is too long"})
	}
	return errs
}
