package server

import (
	"net/http"

	"librarium/pkg/domain"
)

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	bookID, ok := pathID(r, "/borrow/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	rec, err := s.app.Borrow(r.Context(), caller, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	bookID, ok := pathID(r, "/return/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	rec, err := s.app.Return(r.Context(), caller, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUserBorrowedBooks(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID, ok := pathID(r, "/user-borrowed-books/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	recs, err := s.app.BorrowedByUser(caller, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleMyBorrowedBooks(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	recs, err := s.app.MyBorrowed(caller)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
