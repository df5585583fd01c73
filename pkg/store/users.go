package store

import (
	"context"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/models"
)

func userKey(username string) engine.Key {
	return engine.Key{"username": username}
}

// CreateUser stores a new user. Username and email must be unused.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.Username == "" {
		return models.User{}, emptyKey(models.TableUsers, "username")
	}
	var out models.User
	err := s.write(ctx, "create_user", func(tx engine.Tx) error {
		row, err := s.insert(ctx, tx, models.TableUsers, u)
		if err != nil {
			return err
		}
		return engine.ScanStruct(s.tables[models.TableUsers], row, &out)
	})
	return out, err
}

// GetUser returns the user named username.
func (s *Store) GetUser(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := s.read(ctx, "get_user", func(tx engine.Tx) error {
		return s.get(ctx, tx, models.TableUsers, userKey(username), &u)
	})
	return u, err
}

// UserByEmail returns the user registered with email.
func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.read(ctx, "user_by_email", func(tx engine.Tx) error {
		rows, err := tx.Select(ctx, models.TableUsers, engine.Query{
			Where: []builder.Condition{builder.Eq("email", email)},
			Limit: 1,
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return notFoundBy(models.TableUsers, "email", email)
		}
		return engine.ScanStruct(s.tables[models.TableUsers], rows[0], &u)
	})
	return u, err
}

// PasswordHash returns the stored password hash of username for the
// authenticating collaborator to compare against.
func (s *Store) PasswordHash(ctx context.Context, username string) (string, error) {
	u, err := s.GetUser(ctx, username)
	if err != nil {
		return "", err
	}
	return u.Password, nil
}

// UpdateUser changes the attributes set in upd and returns the result.
func (s *Store) UpdateUser(ctx context.Context, username string, upd models.UserUpdate) (models.User, error) {
	set := engine.Row{}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Password != nil {
		set["password"] = *upd.Password
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Image != nil {
		set["image"] = *upd.Image
	}

	var out models.User
	err := s.write(ctx, "update_user", func(tx engine.Tx) error {
		row, err := tx.Update(ctx, models.TableUsers, userKey(username), set)
		if err != nil {
			return err
		}
		return engine.ScanStruct(s.tables[models.TableUsers], row, &out)
	})
	return out, err
}

// RenameUser changes a username. Articles, comments, follows and favorites
// of the user follow in the same transaction.
func (s *Store) RenameUser(ctx context.Context, from, to string) error {
	return s.write(ctx, "rename_user", func(tx engine.Tx) error {
		return s.rename(ctx, tx, models.TableUsers, "username", from, to)
	})
}

// DeleteUser removes a user with everything they wrote, follow and favor,
// and every comment, tag and favorite on their articles.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	return s.write(ctx, "delete_user", func(tx engine.Tx) error {
		return tx.Delete(ctx, models.TableUsers, userKey(username))
	})
}

// UserExists reports whether username is taken.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	return s.Exists(ctx, models.TableUsers, userKey(username))
}

// Profile returns username as seen by viewer. An empty viewer is anonymous.
func (s *Store) Profile(ctx context.Context, username, viewer string) (models.Profile, error) {
	var p models.Profile
	err := s.read(ctx, "profile", func(tx engine.Tx) error {
		var err error
		p, err = s.profile(ctx, tx, username, viewer)
		return err
	})
	return p, err
}

func (s *Store) profile(ctx context.Context, tx engine.Tx, username, viewer string) (models.Profile, error) {
	var u models.User
	if err := s.get(ctx, tx, models.TableUsers, userKey(username), &u); err != nil {
		return models.Profile{}, err
	}
	p := models.Profile{Username: u.Username, Bio: u.Bio, Image: u.Image}
	if viewer != "" {
		following, err := tx.Exists(ctx, models.TableFollows, followKey(viewer, username))
		if err != nil {
			return models.Profile{}, err
		}
		p.Following = following
	}
	return p, nil
}

// profiles loads the profiles of usernames as seen by viewer, keyed by username.
func (s *Store) profiles(ctx context.Context, tx engine.Tx, usernames []string, viewer string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}
	rows, err := tx.Select(ctx, models.TableUsers, engine.Query{
		Where: []builder.Condition{builder.In("username", anys(usernames)...)},
	})
	if err != nil {
		return nil, err
	}
	users, err := scanAll[models.User](s, models.TableUsers, rows)
	if err != nil {
		return nil, err
	}

	following := map[string]bool{}
	if viewer != "" {
		rows, err := tx.Select(ctx, models.TableFollows, engine.Query{
			Where: []builder.Condition{
				builder.Eq("follower", viewer),
				builder.In("followed", anys(usernames)...),
			},
		})
		if err != nil {
			return nil, err
		}
		for _, name := range columnValues[string](rows, "followed") {
			following[name] = true
		}
	}

	for _, u := range users {
		out[u.Username] = models.Profile{
			Username:  u.Username,
			Bio:       u.Bio,
			Image:     u.Image,
			Following: following[u.Username],
		}
	}
	return out, nil
}
