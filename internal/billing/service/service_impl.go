package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/raylanfranco/whitelabel-admin/internal/audit/domain"
	billingdomain "github.com/raylanfranco/whitelabel-admin/internal/billing/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	usagedomain "github.com/raylanfranco/whitelabel-admin/internal/usage/domain"
	"github.com/raylanfranco/whitelabel-admin/pkg/db/option"
	"github.com/raylanfranco/whitelabel-admin/pkg/db/pagination"
	"github.com/raylanfranco/whitelabel-admin/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Cfg       config.Config
	Processor billingdomain.ProcessorClient
	TenantSvc tenantdomain.Service
	UsageSvc  usagedomain.Service
	AuditSvc  auditdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	processor billingdomain.ProcessorClient
	tenantsvc tenantdomain.Service
	usagesvc  usagedomain.Service
	auditsvc  auditdomain.Service
	repo      repository.Repository[billingdomain.Transaction]
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Cfg,

		processor: p.Processor,
		tenantsvc: p.TenantSvc,
		usagesvc:  p.UsageSvc,
		auditsvc:  p.AuditSvc,
		repo:      repository.ProvideStore[billingdomain.Transaction](p.DB),
	}
}

func (s *Service) priceForTier(tier string) (string, error) {
	switch tier {
	case tenantdomain.TierBasic:
		return s.cfg.Stripe.BasicPriceID, nil
	case tenantdomain.TierPremium:
		return s.cfg.Stripe.PremiumPriceID, nil
	default:
		return "", tenantdomain.ErrInvalidTier
	}
}

func (s *Service) CreateSubscription(ctx context.Context, tenantID snowflake.ID, tier string) (*billingdomain.SubscriptionResult, error) {
	priceID, err := s.priceForTier(tier)
	if err != nil {
		return nil, err
	}

	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	customerID := record.StripeCustomerID
	if customerID == "" {
		customer, err := s.processor.CreateCustomer(ctx, record.Name, record.Email, record.Phone, map[string]string{
			"tenant_id": tenantID.String(),
			"subdomain": record.Subdomain,
		})
		if err != nil {
			return nil, err
		}
		customerID = customer.ID
	}

	sub, err := s.processor.CreateSubscription(ctx, customerID, priceID, s.cfg.Stripe.TrialDays, map[string]string{
		"tenant_id": tenantID.String(),
		"tier":      tier,
	})
	if err != nil {
		return nil, err
	}

	setupFee := s.cfg.Stripe.SetupFeeCents
	if setupFee <= 0 {
		setupFee = billingdomain.SetupFeeCents
	}
	if _, err := s.processor.CreateInvoiceItem(ctx, customerID, setupFee, "One-time setup and onboarding fee", map[string]string{
		"tenant_id": tenantID.String(),
		"type":      billingdomain.TypeSetupFee,
	}); err != nil {
		return nil, err
	}
	invoiceID, err := s.processor.CreateInvoice(ctx, customerID, true, map[string]string{
		"tenant_id": tenantID.String(),
		"type":      billingdomain.TypeSetupFee,
	})
	if err != nil {
		return nil, err
	}

	step := tenantdomain.OnboardingPayment
	if _, err := s.tenantsvc.Update(ctx, tenantID, tenantdomain.UpdateTenantRequest{
		StripeCustomerID:     &customerID,
		StripeSubscriptionID: &sub.ID,
		OnboardingStep:       &step,
	}); err != nil {
		return nil, err
	}
	if record.Tier != tier {
		if _, err := s.tenantsvc.SetTier(ctx, tenantID, tier); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	tx := &billingdomain.Transaction{
		ID:            s.genID.Generate(),
		TenantID:      tenantID,
		ProcessorID:   invoiceID,
		Type:          billingdomain.TypeSetupFee,
		Status:        billingdomain.TxPending,
		AmountCents:   setupFee,
		Currency:      "usd",
		Description:   "One-time setup and onboarding fee",
		FiscalQuarter: billingdomain.FiscalQuarter(now),
		FiscalYear:    now.Year(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("subscription_id", sub.ID),
		zap.String("tier", tier),
	)
	_ = s.auditsvc.Record(ctx, &tenantID, "subscription.created", "subscription", sub.ID, map[string]any{
		"tier":            tier,
		"setup_fee_cents": setupFee,
	})
	return &billingdomain.SubscriptionResult{
		CustomerID:     customerID,
		SubscriptionID: sub.ID,
		ClientSecret:   sub.ClientSecret,
		Status:         sub.Status,
		TrialEnd:       sub.TrialEnd,
	}, nil
}

func (s *Service) ChangeTier(ctx context.Context, tenantID snowflake.ID, newTier string) error {
	priceID, err := s.priceForTier(newTier)
	if err != nil {
		return err
	}

	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if record.Tier == newTier {
		return nil
	}
	if record.StripeSubscriptionID == "" {
		return billingdomain.ErrSubscriptionMissing
	}

	sub, err := s.processor.GetSubscription(ctx, record.StripeSubscriptionID)
	if err != nil {
		return err
	}
	if err := s.processor.UpdateSubscriptionPrice(ctx, sub.ID, sub.ItemID, priceID, map[string]string{
		"tenant_id": tenantID.String(),
		"tier":      newTier,
	}); err != nil {
		return err
	}

	// The processor already swapped the price. A local failure here leaves
	// the tier out of sync until the subscription.updated webhook lands.
	if _, err := s.tenantsvc.SetTier(ctx, tenantID, newTier); err != nil {
		s.log.Error("tier updated at processor but not locally",
			zap.String("tenant_id", tenantID.String()),
			zap.String("tier", newTier),
			zap.Error(err),
		)
		return err
	}

	s.log.Info("tier changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("from", record.Tier),
		zap.String("to", newTier),
	)
	return s.auditsvc.Record(ctx, &tenantID, "subscription.tier_changed", "subscription", record.StripeSubscriptionID, map[string]any{
		"from": record.Tier,
		"to":   newTier,
	})
}

func (s *Service) Charge(ctx context.Context, tenantID snowflake.ID, req billingdomain.ChargeRequest) (*billingdomain.ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, billingdomain.ErrInvalidAmount
	}
	if req.AmountCents < billingdomain.MinChargeCents {
		return nil, billingdomain.ErrAmountTooSmall
	}

	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if record.StripeAccountID == "" || !record.ChargesEnabled {
		return nil, billingdomain.ErrConnectNotConfigured
	}

	fee := billingdomain.PlatformFeeCents(req.AmountCents)
	metadata := map[string]string{"tenant_id": tenantID.String()}
	if req.ClientID != nil {
		metadata["client_id"] = req.ClientID.String()
	}
	if req.AppointmentID != nil {
		metadata["appointment_id"] = req.AppointmentID.String()
	}
	if req.Deposit {
		metadata["deposit"] = "true"
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, billingdomain.CreatePaymentIntentParams{
		AmountCents:        req.AmountCents,
		Currency:           "usd",
		ApplicationFee:     fee,
		DestinationAccount: record.StripeAccountID,
		Description:        req.Description,
		Metadata:           metadata,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tx := &billingdomain.Transaction{
		ID:               s.genID.Generate(),
		TenantID:         tenantID,
		ClientID:         req.ClientID,
		AppointmentID:    req.AppointmentID,
		ProcessorID:      intent.ID,
		Type:             billingdomain.TypePayment,
		Status:           billingdomain.TxPending,
		AmountCents:      req.AmountCents,
		Currency:         "usd",
		PlatformFeeCents: fee,
		NetAmountCents:   req.AmountCents - fee,
		Description:      req.Description,
		FiscalQuarter:    billingdomain.FiscalQuarter(now),
		FiscalYear:       now.Year(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}

	s.log.Info("charge created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int64("platform_fee_cents", fee),
	)
	_ = s.auditsvc.Record(ctx, &tenantID, "charge.created", "transaction", tx.ID.String(), map[string]any{
		"amount_cents":       req.AmountCents,
		"platform_fee_cents": fee,
		"deposit":            req.Deposit,
	})
	return &billingdomain.ChargeResult{
		TransactionID:    tx.ID,
		PaymentIntentID:  intent.ID,
		ClientSecret:     intent.ClientSecret,
		AmountCents:      req.AmountCents,
		PlatformFeeCents: fee,
		Status:           intent.Status,
	}, nil
}

func (s *Service) ChargeDeposit(ctx context.Context, tenantID, appointmentID snowflake.ID, amountCents int64) (*billingdomain.ChargeResult, error) {
	return s.Charge(ctx, tenantID, billingdomain.ChargeRequest{
		AmountCents:   amountCents,
		Description:   fmt.Sprintf("Appointment deposit (%s)", appointmentID.String()),
		AppointmentID: &appointmentID,
		Deposit:       true,
	})
}

func (s *Service) Refund(ctx context.Context, tenantID, transactionID snowflake.ID, amountCents int64, reason string) (*billingdomain.Transaction, error) {
	if amountCents <= 0 {
		return nil, billingdomain.ErrInvalidAmount
	}

	original, err := s.repo.FindOne(ctx, map[string]any{"id": transactionID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, billingdomain.ErrTransactionNotFound
	}
	if original.Type == billingdomain.TypeRefund {
		return nil, billingdomain.ErrNotRefundable
	}
	if original.Status != billingdomain.TxCompleted && original.Status != billingdomain.TxRefunded {
		return nil, billingdomain.ErrNotRefundable
	}
	if amountCents+original.RefundedCents > original.AmountCents {
		return nil, billingdomain.ErrRefundExceedsCharge
	}

	refundID, err := s.processor.CreateRefund(ctx, original.ProcessorID, amountCents, reason, map[string]string{
		"tenant_id":      tenantID.String(),
		"transaction_id": transactionID.String(),
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	refund := &billingdomain.Transaction{
		ID:            s.genID.Generate(),
		TenantID:      tenantID,
		ClientID:      original.ClientID,
		AppointmentID: original.AppointmentID,
		ProcessorID:   refundID,
		Type:          billingdomain.TypeRefund,
		Status:        billingdomain.TxCompleted,
		AmountCents:   amountCents,
		Currency:      original.Currency,
		Description:   reason,
		FiscalQuarter: billingdomain.FiscalQuarter(now),
		FiscalYear:    now.Year(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, refund); err != nil {
		return nil, err
	}

	original.RefundedCents += amountCents
	original.Status = billingdomain.TxRefunded
	original.UpdatedAt = now
	if err := s.repo.Save(ctx, original); err != nil {
		return nil, err
	}

	s.log.Info("refund issued",
		zap.String("tenant_id", tenantID.String()),
		zap.String("transaction_id", transactionID.String()),
		zap.Int64("amount_cents", amountCents),
	)
	_ = s.auditsvc.Record(ctx, &tenantID, "refund.issued", "transaction", transactionID.String(), map[string]any{
		"amount_cents": amountCents,
		"reason":       reason,
	})
	return refund, nil
}

func (s *Service) CreateConnectAccount(ctx context.Context, tenantID snowflake.ID) (*billingdomain.ConnectAccountResult, error) {
	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	accountID := record.StripeAccountID
	if accountID == "" {
		country := s.cfg.Stripe.ConnectCountry
		if country == "" {
			country = "US"
		}
		account, err := s.processor.CreateAccount(ctx, country, record.Email, map[string]string{
			"tenant_id": tenantID.String(),
			"subdomain": record.Subdomain,
		})
		if err != nil {
			return nil, err
		}
		accountID = account.ID

		step := tenantdomain.OnboardingConnect
		if _, err := s.tenantsvc.Update(ctx, tenantID, tenantdomain.UpdateTenantRequest{
			StripeAccountID: &accountID,
			OnboardingStep:  &step,
		}); err != nil {
			return nil, err
		}
	}

	base := strings.TrimRight(s.cfg.BaseURL, "/")
	onboardingURL, err := s.processor.CreateAccountLink(ctx, accountID,
		base+"/connect/refresh",
		base+"/connect/return",
	)
	if err != nil {
		return nil, err
	}

	s.log.Info("connect onboarding link issued",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID),
	)
	return &billingdomain.ConnectAccountResult{
		AccountID:     accountID,
		OnboardingURL: onboardingURL,
		Status:        "onboarding",
	}, nil
}

func (s *Service) ConnectStatus(ctx context.Context, tenantID snowflake.ID) (*billingdomain.ConnectStatusResult, error) {
	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if record.StripeAccountID == "" {
		return &billingdomain.ConnectStatusResult{Status: "not_started"}, nil
	}

	account, err := s.processor.GetAccount(ctx, record.StripeAccountID)
	if err != nil {
		return nil, err
	}
	updated, err := s.tenantsvc.UpdateConnectStatus(ctx, tenantID, tenantdomain.ConnectStatus{
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	})
	if err != nil {
		return nil, err
	}

	return &billingdomain.ConnectStatusResult{
		AccountID:        account.ID,
		Status:           updated.PaymentProcessingStatus(),
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}, nil
}

func (s *Service) SubscriptionStatus(ctx context.Context, tenantID snowflake.ID) (*billingdomain.SubscriptionStatusResult, error) {
	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &billingdomain.SubscriptionStatusResult{
		Tier:           record.Tier,
		Status:         record.Status,
		SetupCompleted: record.SetupCompleted,
	}
	if record.TrialEndsAt != nil {
		result.TrialEndsAt = record.TrialEndsAt.UTC().Format(time.RFC3339)
	}

	report, err := s.usagesvc.Report(ctx, tenantID)
	if err != nil {
		s.log.Warn("usage report unavailable",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		result.Usage = report
	}
	return result, nil
}

func (s *Service) ListTransactions(ctx context.Context, tenantID snowflake.ID, req billingdomain.ListTransactionsRequest) (billingdomain.ListTransactionsResponse, error) {
	filter := map[string]any{"tenant_id": tenantID}
	if txType := strings.TrimSpace(req.Type); txType != "" {
		filter["type"] = txType
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter["status"] = status
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return billingdomain.ListTransactionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(record *billingdomain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	records := make([]billingdomain.Transaction, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := billingdomain.ListTransactionsResponse{Transactions: records}
	if pageInfo != nil {
		resp.HasMore = pageInfo.HasMore
		resp.NextPageToken = pageInfo.NextPageToken
	}
	return resp, nil
}
