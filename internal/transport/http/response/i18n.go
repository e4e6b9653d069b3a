package response

import "strings"

type Lang string

const (
	LangTR Lang = "tr"
	LangEN Lang = "en"
)

// LangFrom 只区分英文和土耳其语，默认土耳其语
func LangFrom(acceptLanguage string) Lang {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		switch {
		case strings.HasPrefix(tag, "tr"):
			return LangTR
		case strings.HasPrefix(tag, "en"):
			return LangEN
		}
	}
	return LangTR
}

var codeTR = map[int]string{
	CodeOK:           "Tamam",
	CodeBadRequest:   "Geçersiz istek",
	CodeUnauthorized: "Oturum açmanız gerekiyor",
	CodeForbidden:    "Bu işlem için yetkiniz yok",
	CodeNotFound:     "Bulunamadı",
	CodeConflict:     "Kayıt zaten mevcut",
	CodeTooLarge:     "İstek çok büyük",
	CodeTooMany:      "Çok fazla istek, lütfen biraz bekleyin",
	CodeServerError:  "Beklenmeyen bir hata oluştu",
	CodeUnavailable:  "Hizmet şu anda kullanılamıyor",
	CodeTimeout:      "İstek zaman aşımına uğradı",
}

func codeText(lang Lang, code int) string {
	if lang == LangTR {
		if s, ok := codeTR[code]; ok {
			return s
		}
	}
	if s, ok := CodeMsgMap[code]; ok {
		return s
	}
	return CodeMsgMap[CodeServerError]
}

// messageTR 服务层英文文案 -> 土耳其语；未收录的原样返回
var messageTR = map[string]string{
	"email is required":                         "E-posta adresi gerekli",
	"invalid email":                             "Geçersiz e-posta adresi",
	"password too short":                        "Şifre en az 8 karakter olmalı",
	"password too long":                         "Şifre çok uzun",
	"display name too long":                     "Görünen ad çok uzun",
	"invalid phone number":                      "Geçersiz telefon numarası",
	"invalid avatar url":                        "Geçersiz profil resmi adresi",
	"email already registered":                  "Bu e-posta adresi zaten kayıtlı",
	"invalid email or password":                 "E-posta veya şifre hatalı",
	"current password is wrong":                 "Mevcut şifre hatalı",
	"account no longer exists":                  "Hesap artık mevcut değil",
	"oauth sign-in is not configured":           "Google ile giriş yapılandırılmamış",
	"missing authorization code":                "Yetkilendirme kodu eksik",
	"invalid oauth state":                       "Geçersiz oturum durumu, lütfen tekrar deneyin",
	"user not found":                            "Kullanıcı bulunamadı",
	"item not found":                            "İlan bulunamadı",
	"title too short":                           "Başlık en az 3 karakter olmalı",
	"title too long":                            "Başlık çok uzun",
	"description too long":                      "Açıklama çok uzun",
	"unknown category":                          "Geçersiz kategori",
	"unknown city":                              "Geçersiz şehir",
	"unknown status filter":                     "Geçersiz durum filtresi",
	"image upload is not configured":            "Resim yükleme şu anda kullanılamıyor",
	"image too large":                           "Resim en fazla 5 MB olabilir",
	"unsupported image type":                    "Desteklenmeyen resim türü",
	"cannot start a conversation with yourself": "Kendinizle konuşma başlatamazsınız",
	"conversation not found":                    "Konuşma bulunamadı",
	"message is empty":                          "Mesaj boş olamaz",
	"message too long":                          "Mesaj en fazla 2000 karakter olabilir",
	"admin access required":                     "Yönetici yetkisi gerekli",
	"admin features are unavailable":            "Yönetim özellikleri şu anda kullanılamıyor",
	"cannot delete yourself":                    "Kendi hesabınızı silemezsiniz",
	"super admins cannot be deleted":            "Süper yöneticiler silinemez",
	"unknown role":                              "Geçersiz rol",
	"only super admins can change roles":        "Rolleri yalnızca süper yöneticiler değiştirebilir",
	"cannot change your own role":               "Kendi rolünüzü değiştiremezsiniz",
	"csrf token mismatch":                       "Güvenlik doğrulaması başarısız, sayfayı yenileyin",
	"request body too large":                    "İstek çok büyük",
	"too many requests":                         "Çok fazla istek, lütfen biraz bekleyin",
	"server busy":                               "Sunucu meşgul, lütfen tekrar deneyin",
	"timeout":                                   "İstek zaman aşımına uğradı",
	"invalid request":                           "Geçersiz istek",
}

// Localize msg 为空返回空串，由调用方回退到 code 文案
func Localize(lang Lang, msg string) string {
	if msg == "" || lang == LangEN {
		return msg
	}
	if tr, ok := messageTR[msg]; ok {
		return tr
	}
	return msg
}
