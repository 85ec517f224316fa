package main

import (
	"context"

	"go.uber.org/zap"
)

type BookServiceProvider interface {
	Add(ctx context.Context, id int, book Book) error
	GetOne(ctx context.Context, id int) (Book, error)
	Delete(ctx context.Context, id int) error
	Update(ctx context.Context, id int, book Book) (Book, error)
	GetAll(ctx context.Context) ([]Book, error)
}

// BookService applies the sandbox operations on the storage. When a queue
// is set, each successful write is also published for the mirror consumer.
type BookService struct {
	logger  *zap.Logger
	storage BookStorage
	queue   Queuer
}

func NewBookService(logger *zap.Logger, storage BookStorage, queue Queuer) BookServiceProvider {
	return &BookService{
		logger:  logger,
		storage: storage,
		queue:   queue,
	}
}

func (bs *BookService) Add(ctx context.Context, id int, book Book) error {
	if err := bs.storage.Add(ctx, id, book); err != nil {
		return err
	}
	bs.publish(ctx, CreateQueue, book)
	return nil
}

func (bs *BookService) GetOne(ctx context.Context, id int) (Book, error) {
	return bs.storage.GetOne(ctx, id)
}

func (bs *BookService) Delete(ctx context.Context, id int) error {
	if err := bs.storage.Delete(ctx, id); err != nil {
		return err
	}
	bs.publish(ctx, DeleteQueue, Book{ID: id})
	return nil
}

func (bs *BookService) Update(ctx context.Context, id int, book Book) (Book, error) {
	book, err := bs.storage.Update(ctx, id, book)
	if err != nil {
		return book, err
	}
	bs.publish(ctx, UpdateQueue, book)
	return book, nil
}

func (bs *BookService) GetAll(ctx context.Context) ([]Book, error) {
	return bs.storage.GetAll(ctx)
}

func (bs *BookService) publish(ctx context.Context, qid string, book Book) {
	if bs.queue == nil {
		return
	}
	if err := bs.queue.Push(ctx, qid, book); err != nil {
		bs.logger.Error("service: failed to push book to queue", zap.String("qid", qid), zap.Int("book.id", book.ID), zap.Error(err))
	}
}
