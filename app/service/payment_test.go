package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Topupio/game-topup-sub000/app/entity"
	"github.com/Topupio/game-topup-sub000/app/gateway"
	"github.com/Topupio/game-topup-sub000/app/repository"
	"github.com/Topupio/game-topup-sub000/config"
)

type fakePaymentRepo struct {
	payments map[uint64]*entity.Payment
	nextID   uint64

	// createFailures fails the next N inserts to simulate a transient
	// storage outage.
	createFailures int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[uint64]*entity.Payment{}, nextID: 1}
}

func (r *fakePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	if r.createFailures > 0 {
		r.createFailures--
		return errors.New("payments table unavailable")
	}
	if payment.TransactionID != "" {
		for _, item := range r.payments {
			if item.TransactionID == payment.TransactionID {
				return repository.ErrDuplicateKey
			}
		}
	}
	id := r.nextID
	r.nextID++
	copyItem := *payment
	copyItem.ID = id
	r.payments[id] = &copyItem
	payment.ID = id
	return nil
}

func (r *fakePaymentRepo) SetRefund(_ context.Context, payment *entity.Payment) error {
	if _, ok := r.payments[payment.ID]; !ok {
		return errors.New("payment not found")
	}
	copyItem := *payment
	r.payments[payment.ID] = &copyItem
	return nil
}

func (r *fakePaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*entity.Payment, error) {
	for _, item := range r.payments {
		if item.TransactionID == transactionID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) FindSuccessByOrderID(_ context.Context, orderID uint64) (*entity.Payment, error) {
	for _, item := range r.payments {
		if item.OrderID == orderID && (item.Status == entity.PaymentRecordSuccess || item.Status == entity.PaymentRecordRefunded) {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) ListByOrderID(_ context.Context, orderID uint64) ([]*entity.Payment, error) {
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if item.OrderID == orderID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

type fakeGateway struct {
	intent    *gateway.Intent
	intentErr error

	captureResult *gateway.CaptureResult
	captureErr    error
	captureCalls  int

	refundResult *gateway.RefundResult
	refundErr    error
	refundAmount string

	verifyOK  bool
	verifyErr error
}

func (g *fakeGateway) Name() string { return "paypal" }

func (g *fakeGateway) CreateIntent(_ context.Context, amountValue, currency, referenceCode string) (*gateway.Intent, error) {
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	if g.intent != nil {
		return g.intent, nil
	}
	return &gateway.Intent{IntentID: "PPORD-9", Status: "CREATED"}, nil
}

func (g *fakeGateway) Capture(_ context.Context, intentID string) (*gateway.CaptureResult, error) {
	g.captureCalls++
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	if g.captureResult != nil {
		return g.captureResult, nil
	}
	return &gateway.CaptureResult{
		Status:      "COMPLETED",
		CaptureID:   "CAP-1",
		AmountValue: "24.00",
		Currency:    "USD",
		RawResponse: `{"status":"COMPLETED"}`,
	}, nil
}

func (g *fakeGateway) Refund(_ context.Context, captureID, amountValue, currency, reason string) (*gateway.RefundResult, error) {
	g.refundAmount = amountValue
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if g.refundResult != nil {
		return g.refundResult, nil
	}
	return &gateway.RefundResult{RefundID: "REF-1", Status: "COMPLETED"}, nil
}

func (g *fakeGateway) VerifyWebhook(context.Context, http.Header, []byte) (bool, error) {
	return g.verifyOK, g.verifyErr
}

func newPaymentServiceForTest(orders *fakeOrderRepo, payments *fakePaymentRepo, gw *fakeGateway, rates *fakeRateProvider) *PaymentService {
	return NewPaymentService(
		orders,
		payments,
		gw,
		rates,
		config.PaymentsConfig{SettlementCurrency: "USD"},
		logrus.WithField("module", "payments-test"),
	)
}

func pendingOrder(id uint64) *entity.Order {
	return &entity.Order{
		ID:            id,
		Code:          "TPU-260830-ABC234",
		UserID:        "user-1",
		OrderStatus:   entity.OrderPending,
		PaymentStatus: entity.PaymentPending,
		AmountCents:   2400,
		Currency:      "USD",
	}
}

func TestCreateIntentStoresTransactionID(t *testing.T) {
	orders := newFakeOrderRepo()
	orders.orders[1] = pendingOrder(1)
	gw := &fakeGateway{}
	svc := newPaymentServiceForTest(orders, newFakePaymentRepo(), gw, &fakeRateProvider{})

	order, err := svc.CreateIntent(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if order.PaymentInfo.Gateway != "paypal" || order.PaymentInfo.TransactionID != "PPORD-9" {
		t.Fatalf("unexpected payment info: %+v", order.PaymentInfo)
	}

	stored, _ := orders.FindByID(context.Background(), 1)
	if stored.PaymentInfo.TransactionID != "PPORD-9" {
		t.Fatalf("intent id not persisted: %+v", stored.PaymentInfo)
	}
}

func TestCreateIntentRejectsPaidAndFailedOrders(t *testing.T) {
	orders := newFakeOrderRepo()
	paid := pendingOrder(1)
	paid.PaymentStatus = entity.PaymentPaid
	failed := pendingOrder(2)
	failed.PaymentStatus = entity.PaymentFailed
	orders.orders[1] = paid
	orders.orders[2] = failed
	svc := newPaymentServiceForTest(orders, newFakePaymentRepo(), &fakeGateway{}, &fakeRateProvider{})

	if _, err := svc.CreateIntent(context.Background(), "user-1", 1); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	if _, err := svc.CreateIntent(context.Background(), "user-1", 2); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCreateIntentConvertsToSettlementCurrency(t *testing.T) {
	orders := newFakeOrderRepo()
	order := pendingOrder(1)
	order.Currency = "INR"
	orders.orders[1] = order

	var gotAmount, gotCurrency string
	gw := &fakeGateway{}
	svc := NewPaymentService(
		orders,
		newFakePaymentRepo(),
		&amountRecordingGateway{fakeGateway: gw, gotAmount: &gotAmount, gotCurrency: &gotCurrency},
		&fakeRateProvider{rates: map[string]float64{"USD": 1, "INR": 90}},
		config.PaymentsConfig{SettlementCurrency: "USD"},
		logrus.WithField("module", "payments-test"),
	)

	if _, err := svc.CreateIntent(context.Background(), "user-1", 1); err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if gotAmount != "0.27" || gotCurrency != "USD" {
		t.Fatalf("expected converted quote 0.27 USD, got %s %s", gotAmount, gotCurrency)
	}
}

type amountRecordingGateway struct {
	*fakeGateway
	gotAmount   *string
	gotCurrency *string
}

func (g *amountRecordingGateway) CreateIntent(ctx context.Context, amountValue, currency, referenceCode string) (*gateway.Intent, error) {
	*g.gotAmount = amountValue
	*g.gotCurrency = currency
	return g.fakeGateway.CreateIntent(ctx, amountValue, currency, referenceCode)
}

func TestCaptureSettlesOrderAndRecordsPayment(t *testing.T) {
	orders := newFakeOrderRepo()
	order := pendingOrder(1)
	order.PaymentInfo = entity.PaymentInfo{Gateway: "paypal", TransactionID: "PPORD-9"}
	orders.orders[1] = order
	payments := newFakePaymentRepo()
	svc := newPaymentServiceForTest(orders, payments, &fakeGateway{}, &fakeRateProvider{})

	settled, err := svc.Capture(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if settled.OrderStatus != entity.OrderPaid || settled.PaymentStatus != entity.PaymentPaid {
		t.Fatalf("unexpected statuses: %s/%s", settled.OrderStatus, settled.PaymentStatus)
	}
	if settled.PaymentInfo.TransactionID != "CAP-1" {
		t.Fatalf("expected capture id stored, got %s", settled.PaymentInfo.TransactionID)
	}
	if len(settled.Tracking) != 1 || settled.Tracking[0].Message != "Payment received. Order confirmed." {
		t.Fatalf("unexpected tracking: %+v", settled.Tracking)
	}

	if len(payments.payments) != 1 {
		t.Fatalf("expected one payment record, got %d", len(payments.payments))
	}
	record := payments.payments[1]
	if record.Status != entity.PaymentRecordSuccess || record.TransactionID != "CAP-1" {
		t.Fatalf("unexpected payment record: %+v", record)
	}
	if record.AmountCents != 2400 || record.Currency != "USD" {
		t.Fatalf("unexpected payment amount: %d %s", record.AmountCents, record.Currency)
	}
	if record.GatewayOrderID != "PPORD-9" {
		t.Fatalf("unexpected gateway order id: %s", record.GatewayOrderID)
	}
}

func TestCaptureIsIdempotentWhenAlreadyPaid(t *testing.T) {
	orders := newFakeOrderRepo()
	order := pendingOrder(1)
	order.PaymentInfo = entity.PaymentInfo{Gateway: "paypal", TransactionID: "PPORD-9"}
	orders.orders[1] = order
	payments := newFakePaymentRepo()
	gw := &fakeGateway{}
	svc := newPaymentServiceForTest(orders, payments, gw, &fakeRateProvider{})

	if _, err := svc.Capture(context.Background(), "user-1", 1); err != nil {
		t.Fatalf("first capture failed: %v", err)
	}
	second, err := svc.Capture(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("second capture failed: %v", err)
	}
	if second.PaymentStatus != entity.PaymentPaid {
		t.Fatalf("unexpected status: %s", second.PaymentStatus)
	}
	if gw.captureCalls != 1 {
		t.Fatalf("expected one gateway capture call, got %d", gw.captureCalls)
	}
	if len(payments.payments) != 1 {
		t.Fatalf("expected one payment record, got %d", len(payments.payments))
	}
}

func TestCaptureDeclinedInstrumentLeavesOrderPending(t *testing.T) {
	orders := newFakeOrderRepo()
	order := pendingOrder(1)
	order.PaymentInfo = entity.PaymentInfo{Gateway: "paypal", TransactionID: "PPORD-9"}
	orders.orders[1] = order
	payments := newFakePaymentRepo()
	gw := &fakeGateway{captureErr: gateway.ErrInstrumentDeclined}
	svc := newPaymentServiceForTest(orders, payments, gw, &fakeRateProvider{})

	_, err := svc.Capture(context.Background(), "user-1", 1)
	if !errors.Is(err, gateway.ErrInstrumentDeclined) {
		t.Fatalf("expected ErrInstrumentDeclined, got %v", err)
	}

	stored, _ := orders.FindByID(context.Background(), 1)
	if stored.PaymentStatus != entity.PaymentPending {
		t.Fatalf("order must stay pending, got %s", stored.PaymentStatus)
	}
	if len(payments.payments) != 0 {
		t.Fatalf("declined instrument must not create a record, got %d", len(payments.payments))
	}
}

func TestCaptureNonCompletedStatusMarksPaymentFailed(t *testing.T) {
	orders := newFakeOrderRepo()
	order := pendingOrder(1)
	order.PaymentInfo = entity.PaymentInfo{Gateway: "paypal", TransactionID: "PPORD-9"}
	orders.orders[1] = order
	payments := newFakePaymentRepo()
	gw := &fakeGateway{captureResult: &gateway.CaptureResult{Status: "DECLINED", RawResponse: `{"status":"DECLINED"}`}}
	svc := newPaymentServiceForTest(orders, payments, gw, &fakeRateProvider{})

	failed, err := svc.Capture(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if failed.PaymentStatus != entity.PaymentFailed {
		t.Fatalf("expected payment failed, got %s", failed.PaymentStatus)
	}
	if failed.OrderStatus != entity.OrderPending {
		t.Fatalf("fulfillment status must not move, got %s", failed.OrderStatus)
	}
	if len(payments.payments) != 1 || payments.payments[1].Status != entity.PaymentRecordFailed {
		t.Fatalf("expected one failed record: %+v", payments.payments)
	}
}

func TestCaptureRequiresIntent(t *testing.T) {
	orders := newFakeOrderRepo()
	orders.orders[1] = pendingOrder(1)
	svc := newPaymentServiceForTest(orders, newFakePaymentRepo(), &fakeGateway{}, &fakeRateProvider{})

	if _, err := svc.Capture(context.Background(), "user-1", 1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState without intent, got %v", err)
	}
}

func paidOrderWithPayment(orders *fakeOrderRepo, payments *fakePaymentRepo) {
	order := pendingOrder(1)
	order.OrderStatus = entity.OrderPaid
	order.PaymentStatus = entity.PaymentPaid
	order.PaymentInfo = entity.PaymentInfo{Gateway: "paypal", TransactionID: "CAP-1"}
	orders.orders[1] = order
	payments.payments[1] = &entity.Payment{
		ID:            1,
		OrderID:       1,
		UserID:        "user-1",
		Gateway:       "paypal",
		Status:        entity.PaymentRecordSuccess,
		AmountCents:   2400,
		Currency:      "USD",
		TransactionID: "CAP-1",
	}
	payments.nextID = 2
}

func TestRefundFullAmountCancelsOrder(t *testing.T) {
	orders := newFakeOrderRepo()
	payments := newFakePaymentRepo()
	paidOrderWithPayment(orders, payments)
	gw := &fakeGateway{}
	svc := newPaymentServiceForTest(orders, payments, gw, &fakeRateProvider{})

	order, err := svc.Refund(context.Background(), 1, nil, "customer request")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if order.PaymentStatus != entity.PaymentRefunded || order.OrderStatus != entity.OrderCancelled {
		t.Fatalf("unexpected statuses: %s/%s", order.OrderStatus, order.PaymentStatus)
	}
	if gw.refundAmount != "24.00" {
		t.Fatalf("expected full refund of 24.00, got %s", gw.refundAmount)
	}

	record := payments.payments[1]
	if record.Status != entity.PaymentRecordRefunded {
		t.Fatalf("expected refunded record, got %s", record.Status)
	}
	if record.Refund == nil || !record.Refund.Refunded || record.Refund.RefundID != "REF-1" {
		t.Fatalf("unexpected refund details: %+v", record.Refund)
	}
	if record.Refund.AmountCents != 2400 || record.Refund.Reason != "customer request" {
		t.Fatalf("unexpected refund details: %+v", record.Refund)
	}
}

func TestRefundPartialAmount(t *testing.T) {
	orders := newFakeOrderRepo()
	payments := newFakePaymentRepo()
	paidOrderWithPayment(orders, payments)
	gw := &fakeGateway{}
	svc := newPaymentServiceForTest(orders, payments, gw, &fakeRateProvider{})

	amount := int64(1000)
	if _, err := svc.Refund(context.Background(), 1, &amount, "partial goodwill"); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if gw.refundAmount != "10.00" {
		t.Fatalf("expected partial refund of 10.00, got %s", gw.refundAmount)
	}
	if payments.payments[1].Refund.AmountCents != 1000 {
		t.Fatalf("unexpected refund amount: %d", payments.payments[1].Refund.AmountCents)
	}
}

func TestRefundRequiresPaidOrderAndCapture(t *testing.T) {
	orders := newFakeOrderRepo()
	orders.orders[1] = pendingOrder(1)
	svc := newPaymentServiceForTest(orders, newFakePaymentRepo(), &fakeGateway{}, &fakeRateProvider{})

	if _, err := svc.Refund(context.Background(), 1, nil, ""); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("expected ErrNotPaid, got %v", err)
	}

	paid := pendingOrder(2)
	paid.PaymentStatus = entity.PaymentPaid
	paid.PaymentInfo = entity.PaymentInfo{Gateway: "paypal"}
	orders.orders[2] = paid
	if _, err := svc.Refund(context.Background(), 2, nil, ""); !errors.Is(err, ErrNoCaptureFound) {
		t.Fatalf("expected ErrNoCaptureFound without success record, got %v", err)
	}
}

func TestRefundGatewayErrorLeavesStateUntouched(t *testing.T) {
	orders := newFakeOrderRepo()
	payments := newFakePaymentRepo()
	paidOrderWithPayment(orders, payments)
	gw := &fakeGateway{refundErr: errors.New("gateway down")}
	svc := newPaymentServiceForTest(orders, payments, gw, &fakeRateProvider{})

	if _, err := svc.Refund(context.Background(), 1, nil, ""); err == nil {
		t.Fatal("expected gateway error")
	}

	stored, _ := orders.FindByID(context.Background(), 1)
	if stored.PaymentStatus != entity.PaymentPaid {
		t.Fatalf("order must stay paid after failed refund, got %s", stored.PaymentStatus)
	}
	if payments.payments[1].Status != entity.PaymentRecordSuccess {
		t.Fatalf("record must stay success, got %s", payments.payments[1].Status)
	}
}
