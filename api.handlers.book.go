package main

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// CreateBook stores a book under the ID chosen by the caller and announces
// its absolute address in the Location header.
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	book := Book{}
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	err := DecodeBookRequestBody(w, r, &book)
	if err != nil {
		api.logger.Error("failed to create book", zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusBadRequest, "failed to create the book", book))
		return
	}

	err = ValidateBookRequestBody(&book)
	if err != nil {
		api.logger.Error("failed to create book", zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusBadRequest, "failed to create the book", err.Error()))
		return
	}

	err = api.bookService.Add(r.Context(), book.ID, book)
	if errors.Is(err, ErrBookExists) {
		api.logger.Error("book already exists", zap.Int("book.id", book.ID), zap.String("request.id", requestID))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusConflict, "book already exists", book))
		return
	}
	if err != nil {
		api.logger.Error("failed to create book", zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusInternalServerError, "failed to create the book", book))
		return
	}

	api.logger.Info("success to create book", zap.Int("book.id", book.ID), zap.String("request.id", requestID))
	w.Header().Set("Location", BookLocation(r, book.ID))
	api.send(r.Context(), w, http.StatusCreated, book)
}

func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	books, err := api.bookService.GetAll(r.Context())
	if err != nil {
		api.logger.Error("failed to get all books", zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusInternalServerError, "failed to get all books", []Book{}))
		return
	}
	api.logger.Info("success to get all books", zap.String("request.id", requestID), zap.Int("books.total", len(books)))
	api.send(r.Context(), w, http.StatusOK, books)
}

func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		api.logger.Error("book id provided is not valid", zap.String("book.id", ps.ByName("id")), zap.String("request.id", requestID))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusBadRequest, "book id provided is not valid", EmptyData))
		return
	}
	book, err := api.bookService.GetOne(r.Context(), id)
	if errors.Is(err, ErrBookNotFound) {
		api.logger.Error("book does not exist", zap.Int("book.id", id), zap.String("request.id", requestID))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusNotFound, "book does not exist", EmptyData))
		return
	}
	if err != nil {
		api.logger.Error("failed to get book", zap.Int("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusInternalServerError, "failed to get the book", EmptyData))
		return
	}
	api.logger.Info("success to get book", zap.Int("book.id", id), zap.String("request.id", requestID))
	api.send(r.Context(), w, http.StatusOK, book)
}

// UpdateBook replaces the stored book with the full representation sent.
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var book Book
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		api.logger.Error("book id provided is not valid", zap.String("book.id", ps.ByName("id")), zap.String("request.id", requestID))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusBadRequest, "book id provided is not valid", EmptyData))
		return
	}

	err = DecodeBookRequestBody(w, r, &book)
	if err != nil {
		api.logger.Error("failed to update book", zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusBadRequest, "failed to update the book", book))
		return
	}

	err = ValidateBookRequestBody(&book)
	if err == nil && book.ID != id {
		err = errors.New("book id does not match the resource address")
	}
	if err != nil {
		api.logger.Error("failed to update book", zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusBadRequest, "failed to update the book", err.Error()))
		return
	}

	book, err = api.bookService.Update(r.Context(), id, book)
	if errors.Is(err, ErrBookNotFound) {
		api.logger.Error("book does not exist", zap.Int("book.id", id), zap.String("request.id", requestID))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusNotFound, "book does not exist", EmptyData))
		return
	}
	if err != nil {
		api.logger.Error("failed to update book", zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusInternalServerError, "failed to update the book", book))
		return
	}
	api.logger.Info("success to update book", zap.Int("book.id", id), zap.String("request.id", requestID))
	api.send(r.Context(), w, http.StatusOK, book)
}

// DeleteOneBook removes a book. It answers with a bare status code.
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		api.logger.Error("book id provided is not valid", zap.String("book.id", ps.ByName("id")), zap.String("request.id", requestID))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusBadRequest, "book id provided is not valid", EmptyData))
		return
	}

	err = api.bookService.Delete(r.Context(), id)
	if errors.Is(err, ErrBookNotFound) {
		api.logger.Error("book does not exist", zap.Int("book.id", id), zap.String("request.id", requestID))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusNotFound, "book does not exist", EmptyData))
		return
	}
	if err != nil {
		api.logger.Error("failed to delete book", zap.Int("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.sendError(r.Context(), w, NewAPIError(requestID, http.StatusInternalServerError, "failed to delete the book", EmptyData))
		return
	}
	api.logger.Info("success to delete book", zap.Int("book.id", id), zap.String("request.id", requestID))
	api.send(r.Context(), w, http.StatusNoContent, nil)
}

// BookLocation builds the absolute address of a book as seen by the caller.
func BookLocation(r *http.Request, id int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: "/" + BookPath(id)}
	return u.String()
}
