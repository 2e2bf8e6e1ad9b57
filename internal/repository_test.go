package internal_test

import (
	"context"
	"errors"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/DrGermanius/bookstore/internal"
	"github.com/DrGermanius/bookstore/internal/model"
)

var _ = Describe("Repository", func() {
	var (
		repo internal.IRepository
		mock sqlmock.Sqlmock

		ctx         = context.Background()
		orderCols   = []string{"id", "user_id", "claim_code", "status", "total_amount", "discount_amount", "created_at", "completed_at"}
		annoCols    = []string{"id", "title", "body", "scheduled_start", "scheduled_end", "published"}
		uniqueError = &pgconn.PgError{Code: "23505"}
		fkError     = &pgconn.PgError{Code: "23503"}
	)
	BeforeEach(func() {
		db, m, err := sqlmock.New()
		Expect(err).ShouldNot(HaveOccurred())

		mock = m
		logger, err := zap.NewDevelopment()
		Expect(err).ShouldNot(HaveOccurred())

		repo = internal.Repository{
			Conn:   db,
			Logger: logger.Sugar(),
		}
	})
	AfterEach(func() {
		err := mock.ExpectationsWereMet()
		Expect(err).ShouldNot(HaveOccurred())
	})

	Context("Users", func() {
		It("Register without error", func() {
			mock.ExpectQuery("INSERT INTO users (.+) RETURNING id").
				WithArgs("login", "hash", "Ann", "ann@example.com").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

			id, err := repo.Register(ctx, model.User{Login: "login", Password: "hash", Name: "Ann", Email: "ann@example.com"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(id).Should(Equal(1))
		})
		It("Register with a taken login", func() {
			mock.ExpectQuery("INSERT INTO users (.+) RETURNING id").
				WithArgs("login", "hash", "", "").
				WillReturnError(uniqueError)

			_, err := repo.Register(ctx, model.User{Login: "login", Password: "hash"})
			Expect(err).Should(Equal(internal.ErrLoginIsAlreadyTaken))
		})
		It("GetUserByLogin with no user", func() {
			mock.ExpectQuery("SELECT (.+) FROM users WHERE login = \\$1").
				WithArgs("login").
				WillReturnRows(sqlmock.NewRows([]string{"id", "login", "password", "name", "email", "is_admin"}))

			_, err := repo.GetUserByLogin(ctx, "login")
			Expect(err).Should(Equal(internal.ErrInvalidCredentials))
		})
		It("GetUserContact without error", func() {
			mock.ExpectQuery("SELECT name, email FROM users WHERE id = \\$1").
				WithArgs(1).
				WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).AddRow("Ann", "ann@example.com"))

			c, err := repo.GetUserContact(ctx, 1)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c).Should(Equal(model.Contact{Name: "Ann", Email: "ann@example.com"}))
		})
		It("GetUserContact with no user", func() {
			mock.ExpectQuery("SELECT name, email FROM users WHERE id = \\$1").
				WithArgs(1).
				WillReturnRows(sqlmock.NewRows([]string{"name", "email"}))

			_, err := repo.GetUserContact(ctx, 1)
			Expect(err).Should(Equal(internal.ErrNoRecords))
		})
	})

	Context("Orders", func() {
		order := model.Order{
			UserID:         1,
			ClaimCode:      "AAAA0001",
			Status:         model.OrderStatusPending,
			TotalAmount:    decimal.RequireFromString("51"),
			DiscountAmount: decimal.RequireFromString("9"),
			CreatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Items: []model.OrderItem{
				{BookID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("10")},
				{BookID: 2, Quantity: 3, UnitPrice: decimal.RequireFromString("10")},
			},
		}

		It("CountCompletedOrders without error", func() {
			mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM orders WHERE user_id = \\$1 AND status = \\$2").
				WithArgs(1, model.OrderStatusCompleted).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

			n, err := repo.CountCompletedOrders(ctx, 1)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(9))
		})
		It("CreateOrder writes the order, items and cart cleanup in one transaction", func() {
			mock.ExpectBegin()
			mock.ExpectQuery("INSERT INTO orders (.+) RETURNING id").
				WithArgs(1, "AAAA0001", model.OrderStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
			mock.ExpectExec("INSERT INTO order_items (.+) VALUES").
				WithArgs(5, 1, 3, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec("INSERT INTO order_items (.+) VALUES").
				WithArgs(5, 2, 3, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(2, 1))
			mock.ExpectExec("DELETE FROM cart_items WHERE user_id = \\$1 AND book_id = \\$2").
				WithArgs(1, 1).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("DELETE FROM cart_items WHERE user_id = \\$1 AND book_id = \\$2").
				WithArgs(1, 2).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectCommit()

			id, err := repo.CreateOrder(ctx, order)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(id).Should(Equal(5))
		})
		It("CreateOrder rolls back when an item fails", func() {
			mock.ExpectBegin()
			mock.ExpectQuery("INSERT INTO orders (.+) RETURNING id").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
			mock.ExpectExec("INSERT INTO order_items (.+) VALUES").
				WillReturnError(errors.New("some error"))
			mock.ExpectRollback()

			_, err := repo.CreateOrder(ctx, order)
			Expect(err).Should(HaveOccurred())
		})
		It("CreateOrder rolls back the order when cart cleanup fails", func() {
			mock.ExpectBegin()
			mock.ExpectQuery("INSERT INTO orders (.+) RETURNING id").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
			mock.ExpectExec("INSERT INTO order_items (.+) VALUES").
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec("INSERT INTO order_items (.+) VALUES").
				WillReturnResult(sqlmock.NewResult(2, 1))
			mock.ExpectExec("DELETE FROM cart_items WHERE user_id = \\$1 AND book_id = \\$2").
				WithArgs(1, 1).
				WillReturnError(errors.New("db down"))
			mock.ExpectRollback()

			_, err := repo.CreateOrder(ctx, order)
			Expect(err).Should(HaveOccurred())
		})
		It("CreateOrder clears a book ordered on two lines once", func() {
			twice := order
			twice.Items = []model.OrderItem{
				{BookID: 4, Quantity: 1, UnitPrice: decimal.RequireFromString("10")},
				{BookID: 4, Quantity: 2, UnitPrice: decimal.RequireFromString("10")},
			}

			mock.ExpectBegin()
			mock.ExpectQuery("INSERT INTO orders (.+) RETURNING id").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
			mock.ExpectExec("INSERT INTO order_items (.+) VALUES").
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec("INSERT INTO order_items (.+) VALUES").
				WillReturnResult(sqlmock.NewResult(2, 1))
			mock.ExpectExec("DELETE FROM cart_items WHERE user_id = \\$1 AND book_id = \\$2").
				WithArgs(1, 4).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			_, err := repo.CreateOrder(ctx, twice)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("CreateOrder for a user that does not exist", func() {
			unknown := order
			unknown.UserID = 999

			mock.ExpectBegin()
			mock.ExpectQuery("INSERT INTO orders (.+) RETURNING id").
				WithArgs(999, "AAAA0001", model.OrderStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnError(fkError)
			mock.ExpectRollback()

			_, err := repo.CreateOrder(ctx, unknown)
			Expect(err).Should(Equal(internal.ErrUnauthorized))
		})
		It("CreateOrder with a taken claim code", func() {
			mock.ExpectBegin()
			mock.ExpectQuery("INSERT INTO orders (.+) RETURNING id").
				WillReturnError(uniqueError)
			mock.ExpectRollback()

			_, err := repo.CreateOrder(ctx, order)
			Expect(err).Should(Equal(internal.ErrClaimCodeTaken))
		})
		It("GetOrderByClaimCode loads the items", func() {
			created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

			mock.ExpectQuery("SELECT (.+) FROM orders WHERE claim_code = \\$1").
				WithArgs("AAAA0001").
				WillReturnRows(sqlmock.NewRows(orderCols).
					AddRow(5, 1, "AAAA0001", "PENDING", "51.00", "9.00", created, nil))
			mock.ExpectQuery("SELECT book_id, quantity, unit_price FROM order_items WHERE order_id = \\$1 ORDER BY id").
				WithArgs(5).
				WillReturnRows(sqlmock.NewRows([]string{"book_id", "quantity", "unit_price"}).
					AddRow(1, 3, "10.00").
					AddRow(2, 3, "10.00"))

			o, err := repo.GetOrderByClaimCode(ctx, "AAAA0001")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(o.ID).Should(Equal(5))
			Expect(o.CompletedAt).Should(BeNil())
			Expect(o.TotalAmount.Equal(decimal.RequireFromString("51"))).Should(BeTrue())
			Expect(o.Items).Should(HaveLen(2))
			Expect(o.Items[1].BookID).Should(Equal(2))
		})
		It("GetOrderByClaimCode with an unknown code", func() {
			mock.ExpectQuery("SELECT (.+) FROM orders WHERE claim_code = \\$1").
				WithArgs("ZZZZ9999").
				WillReturnRows(sqlmock.NewRows(orderCols))

			_, err := repo.GetOrderByClaimCode(ctx, "ZZZZ9999")
			Expect(err).Should(Equal(internal.ErrOrderNotFound))
		})
		It("GetOrders without error", func() {
			created := time.Now()
			completed := created.Add(time.Hour)

			mock.ExpectQuery("SELECT (.+) FROM orders WHERE user_id = \\$1 ORDER BY created_at DESC").
				WithArgs(1).
				WillReturnRows(sqlmock.NewRows(orderCols).
					AddRow(6, 1, "BBBB0002", "COMPLETED", "12.50", "0", created, completed).
					AddRow(5, 1, "AAAA0001", "PENDING", "51.00", "9.00", created, nil)).
				RowsWillBeClosed()

			orders, err := repo.GetOrders(ctx, 1)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(orders).Should(HaveLen(2))
			Expect(orders[0].CompletedAt).ShouldNot(BeNil())
		})
		It("GetOrders with error", func() {
			mock.ExpectQuery("SELECT (.+) FROM orders WHERE user_id = \\$1 ORDER BY created_at DESC").
				WithArgs(1).
				WillReturnError(errors.New("some error"))

			_, err := repo.GetOrders(ctx, 1)
			Expect(err).Should(HaveOccurred())
		})
		It("UpdateOrderStatus without error", func() {
			now := time.Now()

			mock.ExpectExec("UPDATE orders SET status = \\$1, completed_at = \\$2 WHERE id = \\$3 AND status = \\$4").
				WithArgs(model.OrderStatusCompleted, sqlmock.AnyArg(), 5, model.OrderStatusPending).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.UpdateOrderStatus(ctx, 5, model.OrderStatusPending, model.OrderStatusCompleted, &now)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("UpdateOrderStatus when the order already moved on", func() {
			mock.ExpectExec("UPDATE orders SET status = \\$1, completed_at = \\$2 WHERE id = \\$3 AND status = \\$4").
				WithArgs(model.OrderStatusCancelled, nil, 5, model.OrderStatusPending).
				WillReturnResult(sqlmock.NewResult(0, 0))

			err := repo.UpdateOrderStatus(ctx, 5, model.OrderStatusPending, model.OrderStatusCancelled, nil)
			Expect(err).Should(Equal(internal.ErrOrderNotPending))
		})
	})

	Context("Cart", func() {
		It("AddToCart upserts the quantity", func() {
			mock.ExpectExec("INSERT INTO cart_items (.+) ON CONFLICT \\(user_id, book_id\\) DO UPDATE").
				WithArgs(1, 7, 2).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.AddToCart(ctx, 1, model.CartItem{BookID: 7, Quantity: 2})
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("GetCart without error", func() {
			mock.ExpectQuery("SELECT book_id, quantity FROM cart_items WHERE user_id = \\$1 ORDER BY book_id").
				WithArgs(1).
				WillReturnRows(sqlmock.NewRows([]string{"book_id", "quantity"}).AddRow(7, 2))

			items, err := repo.GetCart(ctx, 1)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(items).Should(Equal([]model.CartItem{{BookID: 7, Quantity: 2}}))
		})
		It("AddToCart for a user that does not exist", func() {
			mock.ExpectExec("INSERT INTO cart_items (.+) ON CONFLICT \\(user_id, book_id\\) DO UPDATE").
				WithArgs(999, 7, 2).
				WillReturnError(fkError)

			err := repo.AddToCart(ctx, 999, model.CartItem{BookID: 7, Quantity: 2})
			Expect(err).Should(Equal(internal.ErrUnauthorized))
		})
	})

	Context("Announcements", func() {
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		dueQuery := "SELECT (.+) FROM announcements WHERE published = FALSE AND scheduled_start <= \\$1 ORDER BY scheduled_start, id FOR UPDATE SKIP LOCKED"

		It("CreateAnnouncement without error", func() {
			mock.ExpectQuery("INSERT INTO announcements (.+) RETURNING id").
				WithArgs("Sale", "All books", now, now.Add(time.Hour)).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

			id, err := repo.CreateAnnouncement(ctx, model.Announcement{
				Title: "Sale", Body: "All books", ScheduledStart: now, ScheduledEnd: now.Add(time.Hour),
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(id).Should(Equal(4))
		})
		It("PublishDueAnnouncements flags due rows", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(dueQuery).
				WithArgs(now).
				WillReturnRows(sqlmock.NewRows(annoCols).
					AddRow(1, "Sale", "All books", now.Add(-time.Hour), now.Add(time.Hour), false).
					AddRow(2, "Reading", "Tonight", now, now.Add(time.Hour), false))
			mock.ExpectExec("UPDATE announcements SET published = TRUE WHERE id = \\$1").
				WithArgs(1).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("UPDATE announcements SET published = TRUE WHERE id = \\$1").
				WithArgs(2).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			due, err := repo.PublishDueAnnouncements(ctx, now)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(due).Should(HaveLen(2))
			Expect(due[0].ID).Should(Equal(1))
			Expect(due[0].Published).Should(BeTrue())
			Expect(due[1].Published).Should(BeTrue())
		})
		It("PublishDueAnnouncements with nothing due", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(dueQuery).
				WithArgs(now).
				WillReturnRows(sqlmock.NewRows(annoCols))
			mock.ExpectCommit()

			due, err := repo.PublishDueAnnouncements(ctx, now)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(due).Should(BeEmpty())
		})
		It("PublishDueAnnouncements returns nothing when the update fails", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(dueQuery).
				WithArgs(now).
				WillReturnRows(sqlmock.NewRows(annoCols).
					AddRow(1, "Sale", "All books", now, now, false))
			mock.ExpectExec("UPDATE announcements SET published = TRUE WHERE id = \\$1").
				WithArgs(1).
				WillReturnError(errors.New("some error"))
			mock.ExpectRollback()

			due, err := repo.PublishDueAnnouncements(ctx, now)
			Expect(err).Should(HaveOccurred())
			Expect(due).Should(BeNil())
		})
		It("PublishDueAnnouncements returns nothing when the commit fails", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(dueQuery).
				WithArgs(now).
				WillReturnRows(sqlmock.NewRows(annoCols).
					AddRow(1, "Sale", "All books", now, now, false))
			mock.ExpectExec("UPDATE announcements SET published = TRUE WHERE id = \\$1").
				WithArgs(1).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit().WillReturnError(errors.New("some error"))

			due, err := repo.PublishDueAnnouncements(ctx, now)
			Expect(err).Should(HaveOccurred())
			Expect(due).Should(BeNil())
		})
	})
})
