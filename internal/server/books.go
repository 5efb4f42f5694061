package server

import (
	"net/http"

	"librarium/internal/app"
	"librarium/pkg/domain"
)

type createBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	TotalCopies int    `json:"total_copies"`
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, caller domain.User) {
	switch r.Method {
	case http.MethodGet:
		books, err := s.app.ListBooks()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, books)
	case http.MethodPost:
		var req createBookRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		book, err := s.app.CreateBook(caller, req.Title, req.Author, req.TotalCopies)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, book)
	default:
		methodNotAllowed(w)
	}
}

type updateBookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	TotalCopies *int    `json:"total_copies"`
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, caller domain.User) {
	id, ok := pathID(r, "/book/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPatch, http.MethodPut:
		var req updateBookRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		book, err := s.app.UpdateBook(caller, id, app.BookUpdate{
			Title:       req.Title,
			Author:      req.Author,
			TotalCopies: req.TotalCopies,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(caller, id); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
