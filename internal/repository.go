package internal

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/DrGermanius/bookstore/db"
	"github.com/DrGermanius/bookstore/internal/model"
)

const (
	orderFields        = "id, user_id, claim_code, status, total_amount, discount_amount, created_at, completed_at"
	announcementFields = "id, title, body, scheduled_start, scheduled_end, published"

	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type IRepository interface {
	Register(context.Context, model.User) (int, error)
	IsUserExist(context.Context, string) (bool, error)
	GetUserByLogin(context.Context, string) (model.User, error)
	GetUserContact(context.Context, int) (model.Contact, error)

	CountCompletedOrders(context.Context, int) (int, error)
	CreateOrder(context.Context, model.Order) (int, error)
	GetOrders(context.Context, int) ([]model.OrderOutput, error)
	GetOrderByID(context.Context, int) (model.Order, error)
	GetOrderByClaimCode(context.Context, string) (model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int, from, to string, completedAt *time.Time) error

	AddToCart(context.Context, int, model.CartItem) error
	GetCart(context.Context, int) ([]model.CartItem, error)

	CreateAnnouncement(context.Context, model.Announcement) (int, error)
	PublishDueAnnouncements(context.Context, time.Time) ([]model.Announcement, error)

	Ping(context.Context) error
}

type Repository struct {
	Conn   *sql.DB
	Logger *zap.SugaredLogger
}

func NewRepository(connString string, logger *zap.SugaredLogger) (*Repository, error) {
	conn, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err = migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &Repository{Conn: conn, Logger: logger}, nil
}

func migrate(conn *sql.DB) error {
	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

func (r Repository) Close() error {
	return r.Conn.Close()
}

func (r Repository) Ping(ctx context.Context) error {
	return r.Conn.PingContext(ctx)
}

func (r Repository) Register(ctx context.Context, u model.User) (int, error) {
	var id int
	row := r.Conn.QueryRowContext(ctx, "INSERT INTO users (login, password, name, email) VALUES ($1, $2, $3, $4) RETURNING id",
		u.Login, u.Password, u.Name, u.Email)

	err := row.Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrLoginIsAlreadyTaken
		}
		return 0, errors.Wrap(err, "insert user")
	}
	return id, nil
}

func (r Repository) IsUserExist(ctx context.Context, login string) (bool, error) {
	exist := false

	row := r.Conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE login = $1)", login)
	err := row.Scan(&exist)
	if err != nil {
		return false, errors.Wrap(err, "check user")
	}

	return exist, nil
}

func (r Repository) GetUserByLogin(ctx context.Context, login string) (model.User, error) {
	var u model.User
	row := r.Conn.QueryRowContext(ctx, "SELECT id, login, password, name, email, is_admin FROM users WHERE login = $1", login)

	err := row.Scan(&u.ID, &u.Login, &u.Password, &u.Name, &u.Email, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, errors.Wrap(err, "select user")
	}

	return u, nil
}

func (r Repository) GetUserContact(ctx context.Context, uid int) (model.Contact, error) {
	var c model.Contact
	row := r.Conn.QueryRowContext(ctx, "SELECT name, email FROM users WHERE id = $1", uid)

	err := row.Scan(&c.Name, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNoRecords
	}
	if err != nil {
		return model.Contact{}, errors.Wrap(err, "select contact")
	}

	return c, nil
}

func (r Repository) CountCompletedOrders(ctx context.Context, uid int) (int, error) {
	var n int
	row := r.Conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status = $2", uid, model.OrderStatusCompleted)

	if err := row.Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count completed orders")
	}
	return n, nil
}

// CreateOrder writes the order and its items and removes the ordered books
// from the user's cart, all in one transaction.
func (r Repository) CreateOrder(ctx context.Context, o model.Order) (id int, err error) {
	tx, err := r.Conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.Logger.Errorf("CreateOrder rollback error: %s", rbErr.Error())
			}
		}
	}()

	row := tx.QueryRowContext(ctx, "INSERT INTO orders (user_id, claim_code, status, total_amount, discount_amount, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		o.UserID, o.ClaimCode, o.Status, o.TotalAmount, o.DiscountAmount, o.CreatedAt)
	if err = row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrClaimCodeTaken
		}
		if isForeignKeyViolation(err) {
			return 0, ErrUnauthorized
		}
		return 0, errors.Wrap(err, "insert order")
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx, "INSERT INTO order_items (order_id, book_id, quantity, unit_price) VALUES ($1, $2, $3, $4)",
			id, item.BookID, item.Quantity, item.UnitPrice)
		if err != nil {
			return 0, errors.Wrapf(err, "insert order item %d", item.BookID)
		}
	}

	removed := make(map[int]struct{}, len(o.Items))
	for _, item := range o.Items {
		if _, ok := removed[item.BookID]; ok {
			continue
		}
		removed[item.BookID] = struct{}{}

		if _, err = tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1 AND book_id = $2", o.UserID, item.BookID); err != nil {
			return 0, errors.Wrapf(err, "delete cart item %d", item.BookID)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit order")
	}
	return id, nil
}

func (r Repository) GetOrders(ctx context.Context, uid int) ([]model.OrderOutput, error) {
	rows, err := r.Conn.QueryContext(ctx, "SELECT "+orderFields+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", uid)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	defer rows.Close()

	var orders []model.OrderOutput
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}

		orders = append(orders, model.OrderOutput{
			ID:             o.ID,
			ClaimCode:      o.ClaimCode,
			Status:         o.Status,
			TotalAmount:    o.TotalAmount,
			DiscountAmount: o.DiscountAmount,
			CreatedAt:      o.CreatedAt,
			CompletedAt:    o.CompletedAt,
		})
	}

	return orders, rows.Err()
}

func (r Repository) GetOrderByID(ctx context.Context, id int) (model.Order, error) {
	return r.getOrder(ctx, "SELECT "+orderFields+" FROM orders WHERE id = $1", id)
}

func (r Repository) GetOrderByClaimCode(ctx context.Context, code string) (model.Order, error) {
	return r.getOrder(ctx, "SELECT "+orderFields+" FROM orders WHERE claim_code = $1", code)
}

func (r Repository) getOrder(ctx context.Context, query string, arg interface{}) (model.Order, error) {
	o, err := scanOrder(r.Conn.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, err
	}

	rows, err := r.Conn.QueryContext(ctx, "SELECT book_id, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id", o.ID)
	if err != nil {
		return model.Order{}, errors.Wrap(err, "select order items")
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err = rows.Scan(&item.BookID, &item.Quantity, &item.UnitPrice); err != nil {
			return model.Order{}, errors.Wrap(err, "scan order item")
		}
		o.Items = append(o.Items, item)
	}

	return o, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (model.Order, error) {
	var (
		o           model.Order
		completedAt sql.NullTime
	)

	err := s.Scan(&o.ID, &o.UserID, &o.ClaimCode, &o.Status, &o.TotalAmount, &o.DiscountAmount, &o.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, errors.Wrap(err, "scan order")
	}

	if completedAt.Valid {
		t := completedAt.Time
		o.CompletedAt = &t
	}
	return o, nil
}

// UpdateOrderStatus moves an order from one status to another. It fails with
// ErrOrderNotPending when the order is no longer in the from status.
func (r Repository) UpdateOrderStatus(ctx context.Context, id int, from, to string, completedAt *time.Time) error {
	res, err := r.Conn.ExecContext(ctx, "UPDATE orders SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4",
		to, completedAt, id, from)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrOrderNotPending
	}
	return nil
}

func (r Repository) AddToCart(ctx context.Context, uid int, item model.CartItem) error {
	_, err := r.Conn.ExecContext(ctx, `INSERT INTO cart_items (user_id, book_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, book_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		uid, item.BookID, item.Quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUnauthorized
		}
		return errors.Wrap(err, "upsert cart item")
	}
	return nil
}

func (r Repository) GetCart(ctx context.Context, uid int) ([]model.CartItem, error) {
	rows, err := r.Conn.QueryContext(ctx, "SELECT book_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY book_id", uid)
	if err != nil {
		return nil, errors.Wrap(err, "select cart")
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var c model.CartItem
		if err = rows.Scan(&c.BookID, &c.Quantity); err != nil {
			return nil, errors.Wrap(err, "scan cart item")
		}
		items = append(items, c)
	}

	return items, rows.Err()
}

func (r Repository) CreateAnnouncement(ctx context.Context, a model.Announcement) (int, error) {
	var id int
	row := r.Conn.QueryRowContext(ctx, "INSERT INTO announcements (title, body, scheduled_start, scheduled_end) VALUES ($1, $2, $3, $4) RETURNING id",
		a.Title, a.Body, a.ScheduledStart, a.ScheduledEnd)

	if err := row.Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert announcement")
	}
	return id, nil
}

// PublishDueAnnouncements flags every unpublished announcement whose start
// has passed and returns them. Nothing is flagged if the commit fails.
func (r Repository) PublishDueAnnouncements(ctx context.Context, now time.Time) (due []model.Announcement, err error) {
	tx, err := r.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.Logger.Errorf("PublishDueAnnouncements rollback error: %s", rbErr.Error())
			}
		}
	}()

	rows, err := tx.QueryContext(ctx, "SELECT "+announcementFields+" FROM announcements WHERE published = FALSE AND scheduled_start <= $1 ORDER BY scheduled_start, id FOR UPDATE SKIP LOCKED", now)
	if err != nil {
		return nil, errors.Wrap(err, "select due announcements")
	}

	for rows.Next() {
		var a model.Announcement
		if err = rows.Scan(&a.ID, &a.Title, &a.Body, &a.ScheduledStart, &a.ScheduledEnd, &a.Published); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan announcement")
		}
		due = append(due, a)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "iterate announcements")
	}
	rows.Close()

	for i := range due {
		if _, err = tx.ExecContext(ctx, "UPDATE announcements SET published = TRUE WHERE id = $1", due[i].ID); err != nil {
			return nil, errors.Wrapf(err, "publish announcement %d", due[i].ID)
		}
		due[i].Published = true
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit announcements")
	}
	return due, nil
}

func isUniqueViolation(err error) bool {
	return hasSQLState(err, uniqueViolation)
}

// isForeignKeyViolation reports a reference to a user that does not exist.
func isForeignKeyViolation(err error) bool {
	return hasSQLState(err, foreignKeyViolation)
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

var _ IRepository = Repository{}
