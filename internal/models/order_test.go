package models

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to OrderStatus
	}{
		{OrderStatusDraft, OrderStatusConfirmed},
		{OrderStatusDraft, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusReadyToCut},
		{OrderStatusConfirmed, OrderStatusCancelled},
		{OrderStatusReadyToCut, OrderStatusCuttingCommitted},
		{OrderStatusReadyToCut, OrderStatusConfirmed},
		{OrderStatusReadyToCut, OrderStatusCancelled},
		{OrderStatusCuttingCommitted, OrderStatusAssembly},
		{OrderStatusAssembly, OrderStatusQualityCheck},
		{OrderStatusQualityCheck, OrderStatusDispatched},
		{OrderStatusQualityCheck, OrderStatusAssembly},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("переход %s -> %s должен быть разрешен", tc.from, tc.to)
		}
	}

	forbidden := []struct {
		from, to OrderStatus
	}{
		{OrderStatusDraft, OrderStatusReadyToCut},
		{OrderStatusDraft, OrderStatusCuttingCommitted},
		{OrderStatusConfirmed, OrderStatusCuttingCommitted},
		// После списания склада отмена невозможна
		{OrderStatusCuttingCommitted, OrderStatusCancelled},
		{OrderStatusCuttingCommitted, OrderStatusReadyToCut},
		{OrderStatusAssembly, OrderStatusCancelled},
		{OrderStatusDispatched, OrderStatusAssembly},
		{OrderStatusDispatched, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusDraft},
		{OrderStatusCancelled, OrderStatusConfirmed},
	}
	for _, tc := range forbidden {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("переход %s -> %s должен быть запрещен", tc.from, tc.to)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	all := []OrderStatus{
		OrderStatusDraft, OrderStatusConfirmed, OrderStatusReadyToCut,
		OrderStatusCuttingCommitted, OrderStatusAssembly, OrderStatusQualityCheck,
		OrderStatusDispatched, OrderStatusCancelled,
	}
	for _, next := range all {
		if OrderStatusDispatched.CanTransitionTo(next) {
			t.Errorf("dispatched — терминальный статус, переход в %s недопустим", next)
		}
		if OrderStatusCancelled.CanTransitionTo(next) {
			t.Errorf("cancelled — терминальный статус, переход в %s недопустим", next)
		}
	}
}

func TestOrderStatusSelfTransition(t *testing.T) {
	if OrderStatusConfirmed.CanTransitionTo(OrderStatusConfirmed) {
		t.Error("переход в тот же статус недопустим")
	}
}
