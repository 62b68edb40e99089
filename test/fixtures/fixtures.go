package fixtures

import (
	"time"

	"github.com/nimasrn/vtu-gateway/internal/model"
)

var (
	TestUser1 = model.User{
		ID:    1,
		Email: "user1@example.test",
	}

	TestUser2 = model.User{
		ID:    2,
		Email: "user2@example.test",
	}

	TestWallet1 = model.Wallet{
		ID:       1,
		UserID:   1,
		Balance:  500000,
		Currency: "NGN",
	}

	TestWalletLowBalance = model.Wallet{
		ID:       2,
		UserID:   2,
		Balance:  100,
		Currency: "NGN",
	}

	TestWalletZeroBalance = model.Wallet{
		ID:       3,
		UserID:   3,
		Balance:  0,
		Currency: "NGN",
	}
)

func NewTestAirtimeRequest(userID int64, network, phone string, amount uint) model.AirtimePurchaseRequest {
	return model.AirtimePurchaseRequest{
		UserID:  userID,
		Network: network,
		Phone:   phone,
		Amount:  amount,
		Pin:     "1234",
	}
}

func NewTestDataRequest(userID int64, network, phone string, planID int64) model.DataPurchaseRequest {
	return model.DataPurchaseRequest{
		UserID:  userID,
		Network: network,
		Phone:   phone,
		PlanID:  planID,
		Pin:     "1234",
	}
}

func NewTestCableRequest(userID int64, provider, smartcard string, planID int64) model.CablePurchaseRequest {
	return model.CablePurchaseRequest{
		UserID:          userID,
		CableProvider:   provider,
		SmartcardNumber: smartcard,
		PlanID:          planID,
		Pin:             "1234",
	}
}

func NewTestElectricityRequest(userID int64, disco, meter, meterType string, amount uint) model.ElectricityPurchaseRequest {
	return model.ElectricityPurchaseRequest{
		UserID:      userID,
		Disco:       disco,
		MeterNumber: meter,
		MeterType:   meterType,
		Amount:      amount,
		Pin:         "1234",
	}
}

var (
	ValidPhoneNumbers = []string{
		"08012345678",
		"07098765432",
		"09031234567",
		"+2348012345678",
		"2348012345678",
	}

	InvalidPhoneNumbers = []string{
		"",
		"123",
		"invalid",
		"+1415123456",
		"0801234567",
	}

	ValidPins = []string{
		"0000",
		"1234",
		"9999",
	}

	InvalidPins = []string{
		"",
		"123",
		"12345",
		"12a4",
	}
)

func AirtimeRequestValid() model.AirtimePurchaseRequest {
	return NewTestAirtimeRequest(1, "mtn", "08012345678", 50000)
}

func AirtimeRequestInvalidPhone() model.AirtimePurchaseRequest {
	return NewTestAirtimeRequest(1, "mtn", "123", 50000)
}

func AirtimeRequestZeroAmount() model.AirtimePurchaseRequest {
	return NewTestAirtimeRequest(1, "mtn", "08012345678", 0)
}

func TransactionFilterByUser(userID int64) model.TransactionFilter {
	return model.TransactionFilter{
		UserID: &userID,
		Limit:  50,
		Offset: 0,
		Desc:   false,
	}
}

func TransactionFilterWithPagination(userID int64, limit, offset int) model.TransactionFilter {
	return model.TransactionFilter{
		UserID: &userID,
		Limit:  limit,
		Offset: offset,
		Desc:   false,
	}
}

func TransactionFilterByService(userID int64, svc model.ServiceType) model.TransactionFilter {
	return model.TransactionFilter{
		UserID:  &userID,
		Service: &svc,
		Limit:   50,
		Offset:  0,
		Desc:    false,
	}
}

func TransactionFilterByTimeRange(userID int64, from, to time.Time) model.TransactionFilter {
	return model.TransactionFilter{
		UserID: &userID,
		From:   &from,
		To:     &to,
		Limit:  50,
		Offset: 0,
		Desc:   false,
	}
}
