package storetest

import (
	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/runtime"
)

func (s *Suite) TestCreateUser() {
	u, err := s.Store.CreateUser(s.ctx, models.User{Username: "jake", Email: "jake@jake.jake", Password: "h"})
	s.Require().NoError(err)
	s.Equal("jake", u.Username)
	s.Nil(u.Bio, "absent bio stays NULL")

	got, err := s.Store.GetUser(s.ctx, "jake")
	s.Require().NoError(err)
	s.Equal(u, got)

	ok, err := s.Store.UserExists(s.ctx, "jake")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.Store.UserExists(s.ctx, "nobody")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *Suite) TestEmptyStringIsNotNull() {
	empty := ""
	u, err := s.Store.CreateUser(s.ctx, models.User{Username: "jake", Email: "jake@jake.jake", Password: "h", Bio: &empty})
	s.Require().NoError(err)
	s.Require().NotNil(u.Bio)
	s.Equal("", *u.Bio)
	s.Nil(u.Image)

	got, err := s.Store.GetUser(s.ctx, "jake")
	s.Require().NoError(err)
	s.Require().NotNil(got.Bio, "empty bio is not read back as NULL")
	s.Equal("", *got.Bio)

	image := &empty
	_, err = s.Store.UpdateUser(s.ctx, "jake", models.UserUpdate{Image: &image})
	s.Require().NoError(err)
	got, err = s.Store.GetUser(s.ctx, "jake")
	s.Require().NoError(err)
	s.Require().NotNil(got.Image, "empty image is not stored as NULL")
	s.Equal("", *got.Image)
	s.Require().NotNil(got.Bio)

	var null *string
	_, err = s.Store.UpdateUser(s.ctx, "jake", models.UserUpdate{Bio: &null})
	s.Require().NoError(err)
	got, err = s.Store.GetUser(s.ctx, "jake")
	s.Require().NoError(err)
	s.Nil(got.Bio, "bio cleared to NULL")
	s.Require().NotNil(got.Image)
	s.Zero(s.Count(models.TableUsers, builder.IsNull("image")))
	s.Equal(int64(1), s.Count(models.TableUsers, builder.IsNull("bio")))
}

func (s *Suite) TestCreateUser_Duplicates() {
	_, err := s.Store.CreateUser(s.ctx, models.User{Username: "jake", Email: "jake@jake.jake", Password: "h"})
	s.Require().NoError(err)

	_, err = s.Store.CreateUser(s.ctx, models.User{Username: "jake", Email: "other@x", Password: "h"})
	s.ErrorIs(err, runtime.ErrConstraintViolation)
	s.ErrorIs(err, runtime.ErrDuplicateKey)

	_, err = s.Store.CreateUser(s.ctx, models.User{Username: "jacob", Email: "jake@jake.jake", Password: "h"})
	s.ErrorIs(err, runtime.ErrDuplicateKey, "email is unique")

	_, err = s.Store.CreateUser(s.ctx, models.User{Email: "e@x", Password: "h"})
	s.ErrorIs(err, runtime.ErrConstraintViolation)
	s.ErrorIs(err, runtime.ErrEmptyKey)

	s.Equal(int64(1), s.Count(models.TableUsers))
}

func (s *Suite) TestUpdateUser() {
	s.Seed()

	email := "jake@new.jake"
	image := "https://img/jake.png"
	imagePtr := &image
	u, err := s.Store.UpdateUser(s.ctx, "jake", models.UserUpdate{Email: &email, Image: &imagePtr})
	s.Require().NoError(err)
	s.Equal(email, u.Email)
	s.Require().NotNil(u.Image)
	s.Equal(image, *u.Image)
	s.Require().NotNil(u.Bio, "unset fields are kept")

	var cleared *string
	u, err = s.Store.UpdateUser(s.ctx, "jake", models.UserUpdate{Bio: &cleared})
	s.Require().NoError(err)
	s.Nil(u.Bio)

	taken := "jane@jane.jane"
	_, err = s.Store.UpdateUser(s.ctx, "jake", models.UserUpdate{Email: &taken})
	s.ErrorIs(err, runtime.ErrDuplicateKey)

	_, err = s.Store.UpdateUser(s.ctx, "nobody", models.UserUpdate{Email: &email})
	s.ErrorIs(err, runtime.ErrNotFound)
}

func (s *Suite) TestUserByEmailAndPassword() {
	s.Seed()

	u, err := s.Store.UserByEmail(s.ctx, "jane@jane.jane")
	s.Require().NoError(err)
	s.Equal("jane", u.Username)

	_, err = s.Store.UserByEmail(s.ctx, "nobody@x")
	s.ErrorIs(err, runtime.ErrNotFound)

	hash, err := s.Store.PasswordHash(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal("hash-bob", hash)
}

func (s *Suite) TestDeleteUser_CascadeCompleteness() {
	s.Seed()

	s.Require().NoError(s.Store.DeleteUser(s.ctx, "jake"))

	s.Zero(s.References(models.TableUsers, "jake"), "no row names jake")
	ok, err := s.Store.ArticleExists(s.ctx, Dragon)
	s.Require().NoError(err)
	s.False(ok, "jake's article is gone")
	s.Zero(s.References(models.TableArticles, Dragon), "nothing hangs off jake's article")

	// Rows unrelated to jake survive.
	s.Equal(int64(2), s.Count(models.TableUsers))
	s.Equal(int64(1), s.Count(models.TableArticles))
	s.Equal(int64(1), s.Count(models.TableTags))
	s.Zero(s.Count(models.TableComments), "jake's comment on jane's article went with him")
	s.Zero(s.Count(models.TableFollows))
	s.Zero(s.Count(models.TableFavorites))

	s.ErrorIs(s.Store.DeleteUser(s.ctx, "jake"), runtime.ErrNotFound)
}

func (s *Suite) TestRenameUser_Propagates() {
	s.Seed()
	before := s.References(models.TableUsers, "jake")

	s.Require().NoError(s.Store.RenameUser(s.ctx, "jake", "jacob"))

	s.Zero(s.References(models.TableUsers, "jake"))
	s.Equal(before, s.References(models.TableUsers, "jacob"))

	a, err := s.Store.GetArticle(s.ctx, Dragon)
	s.Require().NoError(err)
	s.Equal("jacob", a.Author)

	following, err := s.Store.Following(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal([]string{"jacob"}, following)

	_, err = s.Store.GetUser(s.ctx, "jake")
	s.ErrorIs(err, runtime.ErrNotFound)
}

func (s *Suite) TestRenameUser_Conflicts() {
	s.Seed()

	err := s.Store.RenameUser(s.ctx, "jake", "jane")
	s.ErrorIs(err, runtime.ErrConstraintViolation)
	s.ErrorIs(err, runtime.ErrDuplicateKey)

	s.ErrorIs(s.Store.RenameUser(s.ctx, "nobody", "somebody"), runtime.ErrNotFound)
	s.ErrorIs(s.Store.RenameUser(s.ctx, "jake", ""), runtime.ErrEmptyKey)
	s.NoError(s.Store.RenameUser(s.ctx, "jake", "jake"))

	// Nothing moved.
	s.Equal(int64(1), s.Count(models.TableArticles, builder.Eq("author", "jake")))
}

func (s *Suite) TestProfile() {
	s.Seed()

	p, err := s.Store.Profile(s.ctx, "jake", "bob")
	s.Require().NoError(err)
	s.Equal("jake", p.Username)
	s.Require().NotNil(p.Bio)
	s.Equal("I work at statefarm", *p.Bio)
	s.True(p.Following)

	p, err = s.Store.Profile(s.ctx, "jake", "")
	s.Require().NoError(err)
	s.False(p.Following, "anonymous viewers follow no one")

	_, err = s.Store.Profile(s.ctx, "nobody", "bob")
	s.ErrorIs(err, runtime.ErrNotFound)
}
