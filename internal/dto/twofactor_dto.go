package dto

type TwoFactorConfirmRequest struct {
	Code string `json:"code"`
}

type TwoFactorDisableRequest struct {
	Password string `json:"password"`
}

type TwoFactorStatusResponse struct {
	Enabled   bool `json:"enabled"`
	Pending   bool `json:"pending_confirmation"`
	Confirmed bool `json:"confirmed"`
}

type TwoFactorEnrollResponse struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	RecoveryCodes   []string `json:"recovery_codes"`
}

type RecoveryCodesResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}
