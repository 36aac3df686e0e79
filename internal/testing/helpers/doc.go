// Package helpers provides HTTP and database test utilities for the
// Nemesis API.
//
// # JWT Helpers
//
//	jh := helpers.NewJWTHelper(t)
//	token := jh.GenerateToken(t, user)
//
// # Requests
//
//	rec := helpers.NewRequest(t, http.MethodPost, "/v1/answers/survey").
//		WithAuth(jh, user).
//		WithBody(body).
//		Do(mux)
//	helpers.AssertStatus(t, rec, http.StatusOK)
//
// # Assertions
//
//	helpers.AssertProblemDetails(t, rec, http.StatusUnprocessableEntity, model.ErrCodeNoCandidate)
//	helpers.DecodeData(t, rec, &match)
//	n := helpers.CountRecords(t, db, "match_record")
package helpers
