// Package fixtures provides test data factories for repository
// integration tests.
//
//	f := fixtures.New(tdb.DB)
//	alice := f.CreateUser(t)
//	bob := f.CreateUser(t, func(o *fixtures.UserOpts) { o.Username = "bob" })
//	q := f.CreateQuestion(t, "Pineapple belongs on pizza")
//	f.Answer(t, alice, q, 10)
//
// Emails and usernames are randomized so factories can be called freely
// within one namespace. Data is dropped with the namespace when the test
// database is closed.
package fixtures
