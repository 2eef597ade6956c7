package cmd

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/ethpandaops/userop-simulator/pkg/simulation"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/holiman/uint256"
)

type errorView struct {
	Message string        `json:"message"`
	Data    hexutil.Bytes `json:"data,omitempty"`
}

func newErrorView(err error) *errorView {
	if err == nil {
		return nil
	}

	return &errorView{Message: err.Error(), Data: simulation.FailurePayload(err)}
}

func bigView(v *uint256.Int) *hexutil.Big {
	if v == nil {
		return nil
	}

	return (*hexutil.Big)(v.ToBig())
}

type stakeInfoView struct {
	Stake           *hexutil.Big `json:"stake"`
	UnstakeDelaySec uint64       `json:"unstakeDelaySec"`
}

func newStakeInfoView(info userop.StakeInfo) stakeInfoView {
	return stakeInfoView{Stake: bigView(info.Stake), UnstakeDelaySec: info.UnstakeDelaySec}
}

type validationDataView struct {
	Aggregator common.Address `json:"aggregator"`
	ValidAfter uint64         `json:"validAfter"`
	ValidUntil uint64         `json:"validUntil"`
}

func newValidationDataView(v *uint256.Int) validationDataView {
	data := userop.ParseValidationData(v)

	return validationDataView{Aggregator: data.Aggregator, ValidAfter: data.ValidAfter, ValidUntil: data.ValidUntil}
}

type validationView struct {
	Operation               string              `json:"operation"`
	Error                   *errorView          `json:"error,omitempty"`
	PreOpGas                uint64              `json:"preOpGas,omitempty"`
	Prefund                 *hexutil.Big        `json:"prefund,omitempty"`
	AccountValidationData   *validationDataView `json:"accountValidationData,omitempty"`
	PaymasterValidationData *validationDataView `json:"paymasterValidationData,omitempty"`
	PaymasterContext        hexutil.Bytes       `json:"paymasterContext,omitempty"`
	SenderInfo              *stakeInfoView      `json:"senderInfo,omitempty"`
	FactoryInfo             *stakeInfoView      `json:"factoryInfo,omitempty"`
	PaymasterInfo           *stakeInfoView      `json:"paymasterInfo,omitempty"`
	Aggregator              *common.Address     `json:"aggregator,omitempty"`
	AggregatorInfo          *stakeInfoView      `json:"aggregatorInfo,omitempty"`
}

func newValidationView(name string, r simulation.BulkResult[simulation.ValidationResult]) validationView {
	view := validationView{Operation: name, Error: newErrorView(r.Err)}
	if r.Result == nil {
		return view
	}

	res := r.Result
	account := newValidationDataView(res.ReturnInfo.AccountValidationData)
	paymaster := newValidationDataView(res.ReturnInfo.PaymasterValidationData)
	sender := newStakeInfoView(res.SenderInfo)
	factory := newStakeInfoView(res.FactoryInfo)
	pm := newStakeInfoView(res.PaymasterInfo)

	view.PreOpGas = res.ReturnInfo.PreOpGas
	view.Prefund = bigView(res.ReturnInfo.Prefund)
	view.AccountValidationData = &account
	view.PaymasterValidationData = &paymaster
	view.PaymasterContext = res.ReturnInfo.PaymasterContext
	view.SenderInfo = &sender
	view.FactoryInfo = &factory
	view.PaymasterInfo = &pm

	if res.AggregatorInfo != (userop.AggregatorStakeInfo{}) {
		aggregator := res.AggregatorInfo.Aggregator
		info := newStakeInfoView(res.AggregatorInfo.StakeInfo)

		view.Aggregator = &aggregator
		view.AggregatorInfo = &info
	}

	return view
}

type executionView struct {
	Operation                     string        `json:"operation"`
	Error                         *errorView    `json:"error,omitempty"`
	PreOpGas                      uint64        `json:"preOpGas,omitempty"`
	Paid                          *hexutil.Big  `json:"paid,omitempty"`
	ExecutionSuccess              bool          `json:"executionSuccess"`
	PaymasterVerificationGasLimit uint64        `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       uint64        `json:"paymasterPostOpGasLimit,omitempty"`
	TargetSuccess                 bool          `json:"targetSuccess"`
	TargetResult                  hexutil.Bytes `json:"targetResult,omitempty"`
}

func newExecutionView(name string, r simulation.BulkResult[simulation.ExecutionResult]) executionView {
	view := executionView{Operation: name, Error: newErrorView(r.Err)}
	if r.Result == nil {
		return view
	}

	res := r.Result

	view.PreOpGas = res.PreOpGas
	view.Paid = bigView(res.Paid)
	view.ExecutionSuccess = res.ExecutionSuccess
	view.PaymasterVerificationGasLimit = res.PaymasterVerificationGasLimit
	view.PaymasterPostOpGasLimit = res.PaymasterPostOpGasLimit
	view.TargetSuccess = res.TargetSuccess
	view.TargetResult = res.TargetResult

	return view
}

type estimateView struct {
	Kind       string         `json:"kind"`
	Target     string         `json:"target"`
	Error      *errorView     `json:"error,omitempty"`
	GasUsed    hexutil.Uint64 `json:"gasUsed"`
	Success    bool           `json:"success"`
	ReturnData hexutil.Bytes  `json:"returnData,omitempty"`
}

func newEstimateView(kind, target string, r simulation.BulkResult[simulation.TargetCallResult]) estimateView {
	view := estimateView{Kind: kind, Target: target, Error: newErrorView(r.Err)}
	if r.Result == nil {
		return view
	}

	view.GasUsed = hexutil.Uint64(r.Result.GasUsed)
	view.Success = r.Result.Success
	view.ReturnData = r.Result.ReturnData

	return view
}
