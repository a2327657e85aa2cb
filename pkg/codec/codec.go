package codec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// separator разделяет идентификатор записи и подпись в значении cookie
const separator = "."

// Codec подписывает и проверяет значения реферальной cookie вида "<record_id>.<hex_hmac>"
type Codec struct {
	secret []byte
}

// New возвращает Codec с заданным секретом
// (пустой секрет переводит Codec в деградированный режим без подписи)
func New(secret string) *Codec {

	return &Codec{secret: []byte(secret)}
}

// Signed сообщает, настроен ли секрет для подписи
func (c *Codec) Signed() bool {

	return len(c.secret) > 0
}

// Sign возвращает "<recordID>.<hex(HMAC-SHA256(secret, recordID))>",
// без секрета возвращает recordID как есть
func (c *Codec) Sign(recordID string) string {

	if !c.Signed() {
		return recordID
	}

	return recordID + separator + hex.EncodeToString(c.mac(recordID))
}

// Verify проверяет подписанное значение и возвращает идентификатор записи;
// любая ошибка формата или подписи даёт ok=false
func (c *Codec) Verify(value string) (recordID string, ok bool) {

	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	idx := strings.LastIndex(value, separator)

	// без секрета принимаем только голый идентификатор: подпись проверить нечем
	if !c.Signed() {
		if idx >= 0 {
			return "", false
		}
		return value, true
	}

	if idx <= 0 || idx == len(value)-1 {
		return "", false
	}

	recordID, sigHex := value[:idx], value[idx+1:]

	// сравниваем сам hex-текст за постоянное время: подпись в другом регистре
	// или с лишними символами считается подделкой
	expected := hex.EncodeToString(c.mac(recordID))
	if !hmac.Equal([]byte(sigHex), []byte(expected)) {
		return "", false
	}

	return recordID, true
}

// mac считает HMAC-SHA256 от идентификатора
func (c *Codec) mac(recordID string) []byte {

	m := hmac.New(sha256.New, c.secret)
	_, _ = m.Write([]byte(recordID))

	return m.Sum(nil)
}
