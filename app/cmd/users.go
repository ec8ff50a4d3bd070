package cmd

import (
	"errors"
	"fmt"

	"github.com/atsdesk/atsdesk/app/api"
)

// UsersCmd groups user management commands, all except "me" require admin role on the backend
type UsersCmd struct {
	List   UsersListCmd   `command:"list" description:"list users"`
	Add    UsersAddCmd    `command:"add" description:"create user"`
	Update UsersUpdateCmd `command:"update" description:"update user"`
	Delete UsersDeleteCmd `command:"delete" description:"delete user"`
	Me     UsersMeCmd     `command:"me" description:"update own display name or password"`
}

// UsersListCmd lists users
type UsersListCmd struct {
	CommonOpts
}

// Execute users list command
func (c *UsersListCmd) Execute(_ []string) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	res, err := cl.ListUsers(c.context())
	if err != nil {
		return fmt.Errorf("can't list users: %w", err)
	}
	return c.printJSON(res)
}

// UsersAddCmd creates user
type UsersAddCmd struct {
	Name        string   `long:"name" required:"true" description:"username"`
	Pass        string   `long:"pass" required:"true" description:"password"`
	DisplayName string   `long:"display-name" description:"display name"`
	Roles       []string `long:"role" description:"role, repeat for multiple (admin, recruiter)"`

	CommonOpts
}

// Execute users add command
func (c *UsersAddCmd) Execute(_ []string) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	res, err := cl.CreateUser(c.context(), createUserRequest(c))
	if err != nil {
		return fmt.Errorf("can't create user %s: %w", c.Name, err)
	}
	return c.printJSON(res)
}

// UsersUpdateCmd updates user, only set options are changed
type UsersUpdateCmd struct {
	NewName     string   `long:"new-name" description:"rename user"`
	Pass        string   `long:"pass" description:"new password"`
	DisplayName string   `long:"display-name" description:"new display name"`
	Roles       []string `long:"role" description:"replace roles, repeat for multiple"`
	Args        struct {
		Name string `positional-arg-name:"USERNAME" required:"true"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute users update command
func (c *UsersUpdateCmd) Execute(_ []string) error {
	req := updateUserRequest(c)
	if req.NewUsername == nil && req.Password == nil && req.DisplayName == nil && len(req.Roles) == 0 {
		return errors.New("nothing to update")
	}
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	res, err := cl.UpdateUser(c.context(), c.Args.Name, req)
	if err != nil {
		return fmt.Errorf("can't update user %s: %w", c.Args.Name, err)
	}
	return c.printJSON(res)
}

// UsersDeleteCmd deletes user
type UsersDeleteCmd struct {
	Args struct {
		Name string `positional-arg-name:"USERNAME" required:"true"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute users delete command
func (c *UsersDeleteCmd) Execute(_ []string) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	if err := cl.DeleteUser(c.context(), c.Args.Name); err != nil {
		return fmt.Errorf("can't delete user %s: %w", c.Args.Name, err)
	}
	return c.printJSON(map[string]string{"deleted": c.Args.Name})
}

// UsersMeCmd updates the logged-in user
type UsersMeCmd struct {
	Pass        string `long:"pass" description:"new password"`
	DisplayName string `long:"display-name" description:"new display name"`

	CommonOpts
}

// Execute users me command
func (c *UsersMeCmd) Execute(_ []string) error {
	if c.Pass == "" && c.DisplayName == "" {
		return errors.New("nothing to update")
	}
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	req := updateSelfRequest(c)
	res, err := cl.UpdateSelf(c.context(), req)
	if err != nil {
		return fmt.Errorf("can't update profile: %w", err)
	}
	return c.printJSON(res)
}

func createUserRequest(c *UsersAddCmd) api.CreateUserRequest {
	return api.CreateUserRequest{Username: c.Name, Password: c.Pass, DisplayName: c.DisplayName, Roles: c.Roles}
}

func updateUserRequest(c *UsersUpdateCmd) api.UpdateUserRequest {
	req := api.UpdateUserRequest{NewUsername: optional(c.NewName), Password: optional(c.Pass),
		DisplayName: optional(c.DisplayName)}
	if len(c.Roles) > 0 {
		req.Roles = c.Roles
	}
	return req
}

func updateSelfRequest(c *UsersMeCmd) api.UpdateSelfRequest {
	return api.UpdateSelfRequest{Password: optional(c.Pass), DisplayName: optional(c.DisplayName)}
}

// optional returns nil for empty strings so unchanged fields are omitted from the request
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
