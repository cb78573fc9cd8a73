package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxInput はbcryptが扱える入力の最大バイト数。
const bcryptMaxInput = 72

// PasswordHasher はbcryptによるパスワードハッシュ化と検証を提供する。
// bcryptはレコードごとにランダムなソルトを生成し、ハッシュ文字列に埋め込む。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher はPasswordHasherを生成する。
// costが範囲外の場合はbcrypt.DefaultCostを使用する。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash はパスワードをハッシュ化する。
func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Verify はパスワードが保存済みハッシュと一致するかを返す。
// 空や不正な形式のハッシュを含め、比較時のあらゆるエラーは不一致として扱う。
func (h *PasswordHasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
}

// bcryptInput はパスワードを先頭72バイトに切り詰める。
// 128文字までのパスワードを受け付けるため、超過分はハッシュ化・検証の双方で同じように無視する。
func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxInput {
		b = b[:bcryptMaxInput]
	}
	return b
}
