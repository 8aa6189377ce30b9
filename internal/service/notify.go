package service

import (
	"context"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/port"

	"go.uber.org/zap"
)

// companyNotifier resolves a company's recipients and hands the message to
// the dispatcher. Failures are logged and never surface to the caller.
type companyNotifier struct {
	companies port.CompanyStore
	notifier  port.Notifier
	logger    *zap.Logger
}

func (n companyNotifier) notify(ctx context.Context, companyID uint, template string, vars map[string]any) {
	if n.notifier == nil {
		return
	}
	company, err := n.companies.GetCompany(ctx, companyID)
	if err != nil {
		n.logger.Warn("notify: company lookup failed",
			zap.Uint("company_id", companyID),
			zap.String("template", template),
			zap.Error(err),
		)
		return
	}

	vars["company_name"] = company.Name
	err = n.notifier.Notify(ctx, domain.Notification{
		Recipients: company.Recipients(),
		Template:   template,
		Variables:  vars,
	})
	if err != nil {
		n.logger.Warn("notify: dispatch failed",
			zap.Uint("company_id", companyID),
			zap.String("template", template),
			zap.Error(err),
		)
	}
}
